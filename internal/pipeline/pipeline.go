// Package pipeline sequences the inference passes and feeds their results
// through the merge engine in dependency order: entity resolution, attribute
// merging, relationship resolution, confidence aggregation, validation.
// Transitions are strictly forward; a rejection halts with a diagnostic
// report, it never retries with different heuristics.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/avillena/merforge/internal/merge"
	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
	"github.com/avillena/merforge/internal/score"
	"github.com/avillena/merforge/internal/validate"
)

// Stage is the pipeline's position in its forward-only state machine
type Stage string

const (
	StagePending                Stage = "pending"
	StageResolvingEntities      Stage = "resolving_entities"
	StageMergingAttributes      Stage = "merging_attributes"
	StageResolvingRelationships Stage = "resolving_relationships"
	StageAggregatingConfidence  Stage = "aggregating_confidence"
	StageValidating             Stage = "validating"
	StageAccepted               Stage = "accepted"
	StageRejected               Stage = "rejected"
)

// ErrRejected marks a validation failure: the partial model and the full
// violation list are still surfaced on the result
var ErrRejected = errors.New("model rejected by validation")

// Pipeline is the orchestrator over the merge engine. The merge itself is
// single-threaded and synchronous; each stage consumes the complete output
// of the previous stage over immutable inputs.
type Pipeline struct {
	cfg       *model.Config
	norm      *normalize.Normalizer
	entities  *merge.EntityResolver
	attrs     *merge.AttributeMerger
	rels      *merge.RelationshipResolver
	agg       *score.Aggregator
	validator *validate.Validator
	runner    *Runner // nil when no LLM provider is configured
}

// New creates a pipeline with the given configuration and normalizer. The
// runner may be nil for offline merges of captured pass files.
func New(cfg *model.Config, norm *normalize.Normalizer, runner *Runner) *Pipeline {
	agg := score.NewAggregator(cfg.Merge)
	return &Pipeline{
		cfg:       cfg,
		norm:      norm,
		entities:  merge.NewEntityResolver(norm, cfg.Merge),
		attrs:     merge.NewAttributeMerger(norm),
		rels:      merge.NewRelationshipResolver(norm, agg),
		agg:       agg,
		validator: validate.NewValidator(),
		runner:    runner,
	}
}

// Result is the outcome of one pipeline run
type Result struct {
	Stage       Stage
	Model       *model.MER
	Diagnostics model.Diagnostics
}

// MergeInput bundles the pass results with the document context that
// outranks them
type MergeInput struct {
	Passes []model.PassResult
	Rules  []merge.CardinalityRule
	Enums  []model.Enum
	// Malformed carries boundary rejects through to the diagnostics report
	Malformed []string
}

// Merge runs the merge engine over complete pass results. A pass that never
// produced results is simply absent: zero proposals from that pass, degraded
// confidence. The only terminal failure is a validation rejection, returned
// as ErrRejected with the partial model and report still populated.
func (p *Pipeline) Merge(input MergeInput) (*Result, error) {
	result := &Result{Stage: StagePending}
	result.Diagnostics.Malformed = input.Malformed

	p.logf("resolving entities from %d passes\n", len(input.Passes))
	result.Stage = StageResolvingEntities
	resolved := p.entities.Resolve(input.Passes)
	decisions := append([]model.Decision(nil), resolved.Decisions...)

	result.Stage = StageMergingAttributes
	for _, entity := range resolved.Entities {
		decisions = append(decisions, p.attrs.Merge(entity, resolved.Attributes[entity.ID])...)
	}

	result.Stage = StageResolvingRelationships
	var relProposals []merge.RelProposal
	for _, pr := range input.Passes {
		for _, rp := range pr.Relationships {
			relProposals = append(relProposals, merge.RelProposal{RelationshipProposal: rp, Pass: pr.Pass})
		}
	}
	relProposals = merge.ApplyRules(relProposals, input.Rules, p.norm)
	rels, relDecisions, questions := p.rels.Resolve(relProposals, resolved)
	decisions = append(decisions, relDecisions...)

	for _, pr := range input.Passes {
		questions = append(questions, pr.OpenQuestions...)
	}

	result.Stage = StageAggregatingConfidence
	mer := &model.MER{
		Entities:      resolved.Entities,
		Relationships: rels,
		Enums:         input.Enums,
		Meta:          model.Meta{OpenQuestions: questions},
	}
	p.agg.Finalize(mer, decisions)

	result.Model = mer
	result.Diagnostics.Decisions = decisions
	result.Diagnostics.OpenQuestions = questions

	result.Stage = StageValidating
	report := p.validator.Validate(mer)
	result.Diagnostics.Violations = report.Violations
	if !report.OK {
		result.Stage = StageRejected
		return result, fmt.Errorf("%w: %d violations", ErrRejected, len(report.Violations))
	}

	result.Stage = StageAccepted
	p.logf("accepted model: %d entities, %d relationships, %d decisions\n",
		len(mer.Entities), len(mer.Relationships), len(decisions))
	return result, nil
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

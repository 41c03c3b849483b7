package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/time/rate"

	"github.com/avillena/merforge/internal/cache"
	"github.com/avillena/merforge/internal/extract"
	"github.com/avillena/merforge/internal/llm"
	"github.com/avillena/merforge/internal/merge"
	"github.com/avillena/merforge/internal/model"
)

// Pass indices. Later passes see more context, so the aggregator gives
// them higher weight.
const (
	passEntities = iota
	passAttributes
	passRelationships
)

// reviewPassID names the advisory review pass in cache keys and rejects
const reviewPassID = "review"

// Runner executes the inference passes against the configured provider.
// Calls are rate limited and responses cached by prompt; the merge engine
// never blocks on any of this.
type Runner struct {
	provider llm.Provider
	limiter  *rate.Limiter
	cache    cache.Cache
	cfg      *model.Config
}

// NewRunner builds a pass runner from configuration. Returns nil without
// error when no provider is configured (offline mode).
func NewRunner(cfg *model.Config) (*Runner, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Dir != "" {
			c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		} else {
			c = cache.NewMemoryCache(cfg.Cache.MemoryTTL, cfg.Cache.MemoryTTL)
		}
	}

	rps := cfg.LLM.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.LLM.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Runner{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cache:    c,
		cfg:      cfg,
	}, nil
}

// Generate runs the full pipeline over a context pack: the three inference
// passes, the merge engine, then an advisory review pass over the accepted
// model. Review findings land in the diagnostics report; acceptance is
// decided by the deterministic validator alone.
func (p *Pipeline) Generate(ctx context.Context, pack *extract.ContextPack) (*Result, error) {
	if p.runner == nil {
		return nil, errors.New("no LLM provider configured; use an offline merge of captured pass files instead")
	}

	passes, malformed, err := p.runner.RunAll(ctx, pack)
	if err != nil {
		return nil, err
	}

	var rules []merge.CardinalityRule
	for _, r := range pack.CardinalityRules() {
		rules = append(rules, merge.CardinalityRule{
			From: r.From, To: r.To, Type: model.Cardinality(r.Type), Sources: r.Sources,
		})
	}

	result, err := p.Merge(MergeInput{
		Passes:    passes,
		Rules:     rules,
		Enums:     pack.Enums(),
		Malformed: malformed,
	})
	if err != nil {
		return result, err
	}

	review, rejects, err := p.runner.RunReview(ctx, result.Model)
	if err != nil {
		p.runner.warnf("review pass failed, continuing without review findings: %v\n", err)
		return result, nil
	}
	result.Diagnostics.Review = review
	result.Diagnostics.Malformed = append(result.Diagnostics.Malformed, rejects...)
	return result, nil
}

// RunAll executes the three passes in dependency order. The attributes pass
// fans out one call per entity batch, bounded by the configured worker
// count, and joins before the relationships pass. A failed call degrades to
// zero proposals from that pass rather than aborting the run.
func (r *Runner) RunAll(ctx context.Context, pack *extract.ContextPack) ([]model.PassResult, []string, error) {
	var passes []model.PassResult
	var malformed []string

	// 1. Entities
	prompt, err := llm.BuildEntitiesPrompt(pack)
	if err != nil {
		return nil, nil, err
	}
	entResult, rejects, err := r.runPass(ctx, prompt, passEntities, "entities")
	if err != nil {
		r.warnf("entities pass failed, continuing with zero proposals: %v\n", err)
	} else {
		passes = append(passes, entResult)
	}
	malformed = append(malformed, rejects...)

	// 2. Attributes, fanned out per entity batch behind a barrier
	attrResult, rejects := r.runAttributesPass(ctx, pack, entResult.Entities)
	passes = append(passes, attrResult)
	malformed = append(malformed, rejects...)

	// 3. Relationships, over the partial model
	partial := partialModel(entResult.Entities, attrResult.Entities)
	prompt, err = llm.BuildRelationshipsPrompt(pack, partial)
	if err != nil {
		return nil, nil, err
	}
	relResult, rejects, err := r.runPass(ctx, prompt, passRelationships, "relationships")
	if err != nil {
		r.warnf("relationships pass failed, continuing with zero proposals: %v\n", err)
	} else {
		passes = append(passes, relResult)
	}
	malformed = append(malformed, rejects...)

	return passes, malformed, nil
}

// runAttributesPass issues one call per batch of entities concurrently and
// joins the batches into a single pass result. Batch order in the output is
// by batch index, so the result does not depend on completion order.
func (r *Runner) runAttributesPass(ctx context.Context, pack *extract.ContextPack, entities []model.EntityProposal) (model.PassResult, []string) {
	out := model.PassResult{Pass: passAttributes, ID: "attributes"}
	if len(entities) == 0 {
		return out, nil
	}

	batchSize := r.cfg.Concurrency.EntityBatch
	if batchSize <= 0 {
		batchSize = 8
	}
	var batches [][]model.EntityProposal
	for i := 0; i < len(entities); i += batchSize {
		end := i + batchSize
		if end > len(entities) {
			end = len(entities)
		}
		batches = append(batches, entities[i:end])
	}

	workers := r.cfg.Concurrency.PassWorkers
	if workers <= 0 {
		workers = 4
	}

	type batchOut struct {
		result  model.PassResult
		rejects []string
	}
	results := make([]batchOut, len(batches))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []model.EntityProposal) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			names := make([]string, len(batch))
			for j, e := range batch {
				names[j] = e.RawName
			}
			prompt, err := llm.BuildAttributesPrompt(pack, batch, names)
			if err != nil {
				results[idx] = batchOut{rejects: []string{err.Error()}}
				return
			}
			res, rejects, err := r.runPass(ctx, prompt, passAttributes, fmt.Sprintf("attributes[%d]", idx))
			if err != nil {
				r.warnf("attributes batch %d failed, continuing: %v\n", idx, err)
				return
			}
			results[idx] = batchOut{result: res, rejects: rejects}
		}(i, batch)
	}
	wg.Wait() // barrier: the merge engine only ever sees complete passes

	var rejects []string
	for _, b := range results {
		out.Entities = append(out.Entities, b.result.Entities...)
		out.OpenQuestions = append(out.OpenQuestions, b.result.OpenQuestions...)
		rejects = append(rejects, b.rejects...)
	}
	return out, rejects
}

// runPass executes one prompt (through cache and rate limiter) and decodes
// the response at the trust boundary.
func (r *Runner) runPass(ctx context.Context, prompt string, pass int, id string) (model.PassResult, []string, error) {
	key := cache.PromptKey(r.provider.Name(), r.cfg.LLM.Model, prompt)
	if r.cache != nil {
		if data, found := r.cache.Get(key); found {
			r.logf("pass %s: cache hit\n", id)
			return extract.DecodePassResult(data, pass, id)
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return model.PassResult{}, nil, fmt.Errorf("pass %s: %w", id, err)
	}

	r.logf("pass %s: calling %s\n", id, r.provider.Name())
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System:    llm.SystemPrompt,
		Prompt:    prompt,
		MaxTokens: r.cfg.LLM.MaxTokens,
	})
	if err != nil {
		return model.PassResult{}, nil, fmt.Errorf("pass %s: %w", id, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(key, []byte(resp.Text), 0); err != nil {
			r.warnf("cache write failed: %v\n", err)
		}
	}
	return extract.DecodePassResult([]byte(resp.Text), pass, id)
}

// RunReview executes the advisory review pass over the merged model. The
// prompt excludes GeneratedAt, so reruns of identical inputs hit the cache.
func (r *Runner) RunReview(ctx context.Context, mer *model.MER) (*model.ReviewReport, []string, error) {
	prompt, err := llm.BuildReviewPrompt(mer)
	if err != nil {
		return nil, nil, err
	}

	key := cache.PromptKey(r.provider.Name(), r.cfg.LLM.Model, prompt)
	if r.cache != nil {
		if data, found := r.cache.Get(key); found {
			r.logf("pass %s: cache hit\n", reviewPassID)
			return extract.DecodeReviewReport(data, reviewPassID)
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("pass %s: %w", reviewPassID, err)
	}

	r.logf("pass %s: calling %s\n", reviewPassID, r.provider.Name())
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System:    llm.SystemPrompt,
		Prompt:    prompt,
		MaxTokens: r.cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pass %s: %w", reviewPassID, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(key, []byte(resp.Text), 0); err != nil {
			r.warnf("cache write failed: %v\n", err)
		}
	}
	return extract.DecodeReviewReport([]byte(resp.Text), reviewPassID)
}

// partialModel builds the entity view handed to the relationships pass:
// entity names and descriptions from the entities pass, attributes from the
// attributes pass.
func partialModel(entities, attributed []model.EntityProposal) []model.EntityProposal {
	byName := make(map[string][]model.AttributeProposal, len(attributed))
	for _, e := range attributed {
		byName[e.RawName] = e.Attributes
	}
	out := make([]model.EntityProposal, len(entities))
	for i, e := range entities {
		out[i] = e
		if attrs, ok := byName[e.RawName]; ok {
			out[i].Attributes = attrs
		}
	}
	return out
}

func (r *Runner) logf(format string, args ...any) {
	if r.cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func (r *Runner) warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format, args...)
}

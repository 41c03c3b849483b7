package merge

import (
	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

// CardinalityRule is an explicit cardinality stated in curated documents.
// Document rules outrank inferred cardinalities (evidence precedence:
// documents > glossary > design labels).
type CardinalityRule struct {
	From    string
	To      string
	Type    model.Cardinality
	Sources []string
}

// ApplyRules rewrites the cardinality of proposals covered by a document
// rule before conflict resolution, matching endpoints by normalized id.
// Proposals without a matching rule keep their inferred cardinality.
func ApplyRules(proposals []RelProposal, rules []CardinalityRule, norm *normalize.Normalizer) []RelProposal {
	if len(rules) == 0 {
		return proposals
	}

	type pair struct{ from, to string }
	byPair := make(map[pair]model.Cardinality, len(rules))
	for _, rule := range rules {
		if !model.ValidCardinality(rule.Type) {
			continue
		}
		byPair[pair{norm.EntityID(rule.From), norm.EntityID(rule.To)}] = rule.Type
	}

	out := make([]RelProposal, len(proposals))
	for i, p := range proposals {
		out[i] = p
		key := pair{norm.EntityID(p.From), norm.EntityID(p.To)}
		if card, ok := byPair[key]; ok {
			out[i].Type = card
		}
	}
	return out
}

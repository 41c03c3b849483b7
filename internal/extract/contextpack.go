// Package extract handles the two untrusted input boundaries: context packs
// produced by the design-tool extraction collaborator, and structured pass
// results produced by the inference collaborator. Malformed input is
// rejected here, before anything enters the merge pipeline; it is never
// repaired.
package extract

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

// Component is one labeled node from the design source. The label is opaque
// free text; no assumption is made about the design tool's schema.
type Component struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Screen groups components under one screen of the design source
type Screen struct {
	Name       string      `json:"name"`
	Components []Component `json:"components,omitempty"`
}

// GlossaryTerm maps UI aliases to a canonical business term
type GlossaryTerm struct {
	Term    string   `json:"term"`
	Aliases []string `json:"aliases,omitempty"`
}

// Rule is an explicit business rule from curated documents. Only
// cardinality rules are consumed by the merge engine.
type Rule struct {
	Kind    string   `json:"kind"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
	Type    string   `json:"type,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Documents carries curated business documents attached to the pack
type Documents struct {
	Rules []Rule       `json:"rules,omitempty"`
	Enums []model.Enum `json:"enums,omitempty"`
}

// ContextPack is the complete input handed to the inference passes: labeled
// design nodes with their glossary and document context.
type ContextPack struct {
	Name      string         `json:"name,omitempty"`
	Screens   []Screen       `json:"screens"`
	Glossary  []GlossaryTerm `json:"glossary,omitempty"`
	Documents *Documents     `json:"documents,omitempty"`
}

// LoadContextPack reads and decodes a context pack file
func LoadContextPack(path string) (*ContextPack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context pack: %w", err)
	}
	var pack ContextPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse context pack: %w", err)
	}
	if len(pack.Screens) == 0 {
		return nil, fmt.Errorf("context pack %s has no screens", path)
	}
	return &pack, nil
}

// Components counts the labeled components across all screens
func (p *ContextPack) Components() int {
	n := 0
	for _, s := range p.Screens {
		n += len(s.Components)
	}
	return n
}

// Labels returns every component label in the pack, in document order
func (p *ContextPack) Labels() []string {
	var labels []string
	for _, s := range p.Screens {
		labels = append(labels, s.Name)
		for _, c := range s.Components {
			labels = append(labels, c.Name)
		}
	}
	return labels
}

// SynonymTable converts the pack glossary into normalizer synonym groups,
// so glossary terms win over raw UI labels during identity resolution.
func (p *ContextPack) SynonymTable() normalize.Table {
	var t normalize.Table
	for _, g := range p.Glossary {
		if g.Term == "" {
			continue
		}
		t.Entities = append(t.Entities, normalize.Group{Canonical: g.Term, Aliases: g.Aliases})
	}
	return t
}

// CardinalityRules extracts the document cardinality rules for the merge engine
func (p *ContextPack) CardinalityRules() []Rule {
	if p.Documents == nil {
		return nil
	}
	var rules []Rule
	for _, r := range p.Documents.Rules {
		if r.Kind == "cardinality" {
			rules = append(rules, r)
		}
	}
	return rules
}

// Enums returns the document enums carried through to the final model
func (p *ContextPack) Enums() []model.Enum {
	if p.Documents == nil {
		return nil
	}
	return p.Documents.Enums
}

package model

// Cardinality classifies a relationship between two entities
type Cardinality string

const (
	OneToOne   Cardinality = "one-to-one"
	OneToMany  Cardinality = "one-to-many"
	ManyToOne  Cardinality = "many-to-one"
	ManyToMany Cardinality = "many-to-many"
)

// ValidCardinality reports whether c is one of the four supported cardinalities
func ValidCardinality(c Cardinality) bool {
	switch c {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// AttributeProposal is a single pass's unverified claim about an attribute
type AttributeProposal struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	PK         bool     `json:"pk,omitempty"`
	Unique     bool     `json:"unique,omitempty"`
	Nullable   bool     `json:"nullable,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Confidence float64  `json:"confidence"`
}

// EntityProposal is a single pass's unverified claim about an entity.
// RawName is the free-text label as the pass produced it; identity
// resolution happens later via the name normalizer.
type EntityProposal struct {
	RawName     string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Aliases     []string            `json:"aliases,omitempty"`
	Attributes  []AttributeProposal `json:"attributes,omitempty"`
	Sources     []string            `json:"sources,omitempty"`
	Confidence  float64             `json:"confidence"`
}

// ForeignKeyProposal names the referencing attribute and its target ("Entity.attr")
type ForeignKeyProposal struct {
	Attribute string `json:"attribute,omitempty"`
	Ref       string `json:"ref,omitempty"`
}

// RelationshipProposal is a single pass's unverified claim about a
// relationship. From/To are raw labels until resolved.
type RelationshipProposal struct {
	From       string              `json:"from"`
	To         string              `json:"to"`
	Type       Cardinality         `json:"type"`
	FK         *ForeignKeyProposal `json:"fk,omitempty"`
	Sources    []string            `json:"sources,omitempty"`
	Confidence float64             `json:"confidence"`
}

// OpenQuestion is an unresolved ambiguity surfaced by a pass or by the merge
type OpenQuestion struct {
	Question string   `json:"question"`
	Sources  []string `json:"sources,omitempty"`
}

// PassResult is the complete structured output of one inference pass.
// Pass is the zero-based position in the run; later passes see more
// context and may carry higher aggregation weight.
type PassResult struct {
	Pass          int                    `json:"pass"`
	ID            string                 `json:"id"`
	Entities      []EntityProposal       `json:"entities,omitempty"`
	Relationships []RelationshipProposal `json:"relationships,omitempty"`
	OpenQuestions []OpenQuestion         `json:"open_questions,omitempty"`
}

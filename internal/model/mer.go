package model

import "time"

// Sighting records one pass's confidence in an element that survived merge.
// Sightings are carried through the pipeline for the confidence aggregator
// and never serialized.
type Sighting struct {
	Pass       int
	Confidence float64
}

// Attribute is a merged, deduplicated attribute of a canonical entity
type Attribute struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	PK         bool    `json:"pk"`
	Unique     bool    `json:"unique"`
	Nullable   bool    `json:"nullable"`
	Confidence float64 `json:"confidence"`

	Sightings []Sighting `json:"-"`
}

// Entity is the canonical, deduplicated representation of a concept after
// identity resolution. ID is the stable normalized name ("order-item");
// Name is the display form ("OrderItem").
type Entity struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Attributes  []Attribute `json:"attributes"`
	Confidence  float64     `json:"confidence"`
	Tentative   bool        `json:"tentative,omitempty"`

	Sightings []Sighting `json:"-"`
	// FirstSeen orders entities by first sighting (pass index, then input
	// order within the pass). Used for one-to-one foreign key placement.
	FirstSeen int `json:"-"`
}

// Attribute returns the entity's attribute with the given name, or nil
func (e *Entity) Attribute(name string) *Attribute {
	for i := range e.Attributes {
		if e.Attributes[i].Name == name {
			return &e.Attributes[i]
		}
	}
	return nil
}

// PrimaryKey returns the entity's primary key attribute, or nil
func (e *Entity) PrimaryKey() *Attribute {
	for i := range e.Attributes {
		if e.Attributes[i].PK {
			return &e.Attributes[i]
		}
	}
	return nil
}

// ForeignKey names the referencing attribute and its target as "Entity.attr"
type ForeignKey struct {
	Attribute string `json:"attribute"`
	Ref       string `json:"ref"`
}

// Relationship is a resolved relationship between two canonical entities.
// From and To are display names of entities present in the model.
type Relationship struct {
	From       string      `json:"from"`
	To         string      `json:"to"`
	Type       Cardinality `json:"type"`
	FK         *ForeignKey `json:"fk,omitempty"`
	Confidence float64     `json:"confidence"`

	Sightings []Sighting `json:"-"`
}

// Enum is a named value set carried through from curated documents
type Enum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Meta carries run metadata and unresolved questions. GeneratedAt is set by
// the caller just before rendering; the merge itself stays deterministic.
type Meta struct {
	GeneratedAt   time.Time      `json:"generated_at,omitzero"`
	OpenQuestions []OpenQuestion `json:"open_questions,omitempty"`
}

// MER is the final Model Entity-Relationship: the durable contract consumed
// by downstream schema projectors. Entities are ordered by id,
// relationships by (from, to, type).
type MER struct {
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`
	Enums         []Enum          `json:"enums,omitempty"`
	Meta          Meta            `json:"meta"`
}

// Entity returns the entity with the given normalized id, or nil
func (m *MER) Entity(id string) *Entity {
	for _, e := range m.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// EntityByName returns the entity with the given display name, or nil
func (m *MER) EntityByName(name string) *Entity {
	for _, e := range m.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

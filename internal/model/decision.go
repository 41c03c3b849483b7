package model

import "fmt"

// ConflictKind classifies a non-trivial conflict between proposals
type ConflictKind string

const (
	ConflictNameCollision ConflictKind = "name_collision"       // same concept under distinct raw labels
	ConflictTypeMismatch  ConflictKind = "type_mismatch"        // attribute type disagreement
	ConflictPrimaryKey    ConflictKind = "primary_key"          // more than one primary key claimed
	ConflictCardinality   ConflictKind = "cardinality"          // cardinality disagreement between the same pair
	ConflictUnresolvedRef ConflictKind = "unresolved_reference" // endpoint or FK target not in the model
)

// Decision is the audit record of how one conflict was resolved.
// Created during merge, never mutated after creation.
type Decision struct {
	Element    string       `json:"element"`
	Conflict   ConflictKind `json:"conflict"`
	Proposals  []string     `json:"proposals_considered"`
	Resolution string       `json:"resolution"`
}

// AttrKey is the element key for an attribute decision
func AttrKey(entityID, attr string) string {
	return entityID + "." + attr
}

// RelKey is the element key for a relationship decision
func RelKey(fromID, toID string) string {
	return fromID + "->" + toID
}

// Severity distinguishes hard violations from review warnings
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation is one failed validation check over the assembled model
type Violation struct {
	Rule     string   `json:"rule"`
	Element  string   `json:"element,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Rule, v.Message)
}

// ReviewIssue is one advisory finding from the model review pass
type ReviewIssue struct {
	Level   Severity `json:"level"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Sources []string `json:"sources,omitempty"`
}

// ReviewReport is the advisory output of the model review pass. Review
// findings never gate acceptance; only validator errors reject a model.
type ReviewReport struct {
	Status string        `json:"status,omitempty"`
	Issues []ReviewIssue `json:"issues,omitempty"`
}

// Diagnostics is the operator-facing report produced alongside the model:
// the ordered audit trail, validation findings, boundary rejects, review
// findings, and open questions. Not required by downstream projectors.
type Diagnostics struct {
	Decisions     []Decision     `json:"decisions"`
	Violations    []Violation    `json:"violations,omitempty"`
	Malformed     []string       `json:"malformed,omitempty"`
	Review        *ReviewReport  `json:"review,omitempty"`
	OpenQuestions []OpenQuestion `json:"open_questions,omitempty"`
}

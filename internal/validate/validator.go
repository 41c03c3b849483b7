package validate

import (
	"fmt"
	"strings"

	"github.com/avillena/merforge/internal/model"
)

// Rule identifiers, in check order
const (
	RuleEntityShape    = "entity_shape"     // non-empty id, at least one attribute
	RulePrimaryKey     = "primary_key"      // exactly one pk per entity
	RuleEndpoints      = "endpoints"        // relationship endpoints exist
	RuleForeignKey     = "foreign_key"      // fk ref resolves to a target attribute
	RuleDuplicateID    = "duplicate_id"     // no duplicate entity ids
	RuleDuplicateAttr  = "duplicate_attr"   // no duplicate attribute names per entity
	RuleTentativeEntry = "tentative_entity" // low-corroboration entity, review
)

// Report is the outcome of validating an assembled model
type Report struct {
	OK         bool
	Violations []model.Violation
}

// Validator checks global invariants over the assembled model. It is a pure
// read: the model is never mutated, only reported on.
type Validator struct{}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate runs all checks in order. Any error-severity violation rejects
// the model; tentative entities produce warnings only.
func (v *Validator) Validate(m *model.MER) Report {
	var violations []model.Violation

	add := func(rule, element string, severity model.Severity, format string, args ...any) {
		violations = append(violations, model.Violation{
			Rule:     rule,
			Element:  element,
			Severity: severity,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	for _, e := range m.Entities {
		if e.ID == "" || len(e.Attributes) == 0 {
			add(RuleEntityShape, e.ID, model.SeverityError,
				"entity %q must have a non-empty id and at least one attribute", e.Name)
		}
		pks := 0
		for _, a := range e.Attributes {
			if a.PK {
				pks++
			}
		}
		if pks != 1 {
			add(RulePrimaryKey, e.ID, model.SeverityError,
				"entity %q has %d primary key attributes, expected exactly 1", e.Name, pks)
		}
	}

	for _, r := range m.Relationships {
		from := m.EntityByName(r.From)
		to := m.EntityByName(r.To)
		key := model.RelKey(r.From, r.To)
		if from == nil || to == nil {
			add(RuleEndpoints, key, model.SeverityError,
				"relationship %s -> %s references an entity not in the model", r.From, r.To)
			continue
		}
		if r.FK != nil {
			if v := v.checkForeignKey(m, r, from, to); v != nil {
				violations = append(violations, *v)
			}
		}
	}

	seen := make(map[string]bool)
	for _, e := range m.Entities {
		if seen[e.ID] {
			add(RuleDuplicateID, e.ID, model.SeverityError, "duplicate entity id %q", e.ID)
		}
		seen[e.ID] = true

		attrs := make(map[string]bool)
		for _, a := range e.Attributes {
			lower := strings.ToLower(a.Name)
			if attrs[lower] {
				add(RuleDuplicateAttr, model.AttrKey(e.ID, a.Name), model.SeverityError,
					"entity %q has duplicate attribute %q", e.Name, a.Name)
			}
			attrs[lower] = true
		}
	}

	for _, e := range m.Entities {
		if e.Tentative {
			add(RuleTentativeEntry, e.ID, model.SeverityWarning,
				"entity %q was proposed by a single pass below the acceptance threshold; review before projecting", e.Name)
		}
	}

	ok := true
	for _, viol := range violations {
		if viol.Severity == model.SeverityError {
			ok = false
			break
		}
	}
	return Report{OK: ok, Violations: violations}
}

func (v *Validator) checkForeignKey(m *model.MER, r *model.Relationship, from, to *model.Entity) *model.Violation {
	key := model.RelKey(r.From, r.To)
	refEntity, refAttr, ok := strings.Cut(r.FK.Ref, ".")
	if !ok {
		return &model.Violation{
			Rule: RuleForeignKey, Element: key, Severity: model.SeverityError,
			Message: fmt.Sprintf("foreign key ref %q is not of the form Entity.attr", r.FK.Ref),
		}
	}
	target := m.EntityByName(refEntity)
	if target == nil {
		return &model.Violation{
			Rule: RuleForeignKey, Element: key, Severity: model.SeverityError,
			Message: fmt.Sprintf("foreign key ref %q names an entity not in the model", r.FK.Ref),
		}
	}
	if target.Attribute(refAttr) == nil {
		return &model.Violation{
			Rule: RuleForeignKey, Element: key, Severity: model.SeverityError,
			Message: fmt.Sprintf("foreign key ref %q names an attribute %q not on %q", r.FK.Ref, refAttr, target.Name),
		}
	}
	// the referencing attribute must exist on one of the endpoints
	if from.Attribute(r.FK.Attribute) == nil && to.Attribute(r.FK.Attribute) == nil {
		return &model.Violation{
			Rule: RuleForeignKey, Element: key, Severity: model.SeverityError,
			Message: fmt.Sprintf("foreign key attribute %q is not carried by %q or %q", r.FK.Attribute, r.From, r.To),
		}
	}
	return nil
}

package validate

import (
	"testing"

	"github.com/avillena/merforge/internal/model"
)

func validModel() *model.MER {
	return &model.MER{
		Entities: []*model.Entity{
			{ID: "project", Name: "Project", Attributes: []model.Attribute{
				{Name: "id", Type: "uuid", PK: true},
				{Name: "userId", Type: "uuid"},
			}},
			{ID: "user", Name: "User", Attributes: []model.Attribute{
				{Name: "email", Type: "email", Unique: true},
				{Name: "id", Type: "uuid", PK: true},
			}},
		},
		Relationships: []*model.Relationship{
			{From: "Project", To: "User", Type: model.ManyToOne,
				FK: &model.ForeignKey{Attribute: "userId", Ref: "User.id"}},
		},
	}
}

func hasRule(report Report, rule string) bool {
	for _, v := range report.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

func TestValidator_Validate_AcceptsCleanModel(t *testing.T) {
	report := NewValidator().Validate(validModel())
	if !report.OK {
		t.Fatalf("expected OK, got violations: %v", report.Violations)
	}
	if len(report.Violations) != 0 {
		t.Errorf("expected no violations, got %v", report.Violations)
	}
}

func TestValidator_Validate_EntityShape(t *testing.T) {
	m := validModel()
	m.Entities = append(m.Entities, &model.Entity{ID: "ghost", Name: "Ghost"})

	report := NewValidator().Validate(m)
	if report.OK {
		t.Error("attribute-less entity must reject the model")
	}
	if !hasRule(report, RuleEntityShape) {
		t.Errorf("expected %s violation, got %v", RuleEntityShape, report.Violations)
	}
}

func TestValidator_Validate_PrimaryKeyCount(t *testing.T) {
	m := validModel()
	m.Entities[1].Attributes[0].PK = true // second pk on user

	report := NewValidator().Validate(m)
	if report.OK || !hasRule(report, RulePrimaryKey) {
		t.Errorf("expected %s violation, got %v", RulePrimaryKey, report.Violations)
	}

	m = validModel()
	m.Entities[1].Attributes[1].PK = false // no pk on user
	report = NewValidator().Validate(m)
	if report.OK || !hasRule(report, RulePrimaryKey) {
		t.Errorf("expected %s violation for zero keys, got %v", RulePrimaryKey, report.Violations)
	}
}

func TestValidator_Validate_Endpoints(t *testing.T) {
	m := validModel()
	m.Relationships = append(m.Relationships, &model.Relationship{
		From: "Project", To: "Warehouse", Type: model.ManyToOne,
	})

	report := NewValidator().Validate(m)
	if report.OK || !hasRule(report, RuleEndpoints) {
		t.Errorf("expected %s violation, got %v", RuleEndpoints, report.Violations)
	}
}

func TestValidator_Validate_ForeignKey(t *testing.T) {
	cases := []struct {
		name string
		fk   model.ForeignKey
	}{
		{"malformed ref", model.ForeignKey{Attribute: "userId", Ref: "id"}},
		{"unknown entity", model.ForeignKey{Attribute: "userId", Ref: "Warehouse.id"}},
		{"unknown attribute", model.ForeignKey{Attribute: "userId", Ref: "User.ghost"}},
		{"missing carrier", model.ForeignKey{Attribute: "ownerId", Ref: "User.id"}},
	}
	for _, c := range cases {
		m := validModel()
		m.Relationships[0].FK = &c.fk
		report := NewValidator().Validate(m)
		if report.OK || !hasRule(report, RuleForeignKey) {
			t.Errorf("%s: expected %s violation, got %v", c.name, RuleForeignKey, report.Violations)
		}
	}
}

func TestValidator_Validate_Duplicates(t *testing.T) {
	m := validModel()
	m.Entities = append(m.Entities, &model.Entity{
		ID: "user", Name: "User", Attributes: []model.Attribute{{Name: "id", PK: true}},
	})
	report := NewValidator().Validate(m)
	if report.OK || !hasRule(report, RuleDuplicateID) {
		t.Errorf("expected %s violation, got %v", RuleDuplicateID, report.Violations)
	}

	m = validModel()
	m.Entities[1].Attributes = append(m.Entities[1].Attributes, model.Attribute{Name: "Email"})
	report = NewValidator().Validate(m)
	if report.OK || !hasRule(report, RuleDuplicateAttr) {
		t.Errorf("case-insensitive duplicate must be caught, got %v", report.Violations)
	}
}

func TestValidator_Validate_TentativeWarnsOnly(t *testing.T) {
	m := validModel()
	m.Entities[0].Tentative = true

	report := NewValidator().Validate(m)
	if !report.OK {
		t.Fatalf("tentative entities must not reject the model: %v", report.Violations)
	}
	if !hasRule(report, RuleTentativeEntry) {
		t.Errorf("expected a %s warning, got %v", RuleTentativeEntry, report.Violations)
	}
	for _, v := range report.Violations {
		if v.Rule == RuleTentativeEntry && v.Severity != model.SeverityWarning {
			t.Errorf("tentative must be a warning, got %s", v.Severity)
		}
	}
}

func TestValidator_Validate_DoesNotMutate(t *testing.T) {
	m := validModel()
	before := len(m.Entities[0].Attributes)
	NewValidator().Validate(m)
	if len(m.Entities[0].Attributes) != before {
		t.Error("validation must not mutate the model")
	}
}

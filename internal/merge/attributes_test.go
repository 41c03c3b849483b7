package merge

import (
	"testing"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

func newTestEntity(id string) *model.Entity {
	return &model.Entity{ID: id, Name: normalize.DisplayName(id)}
}

func TestAttributeMerger_Merge_DedupAcrossLanguages(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("user")

	decisions := m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "Correo electrónico", Type: "string", Confidence: 0.6}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "email", Type: "email", Confidence: 0.9}, Pass: 1},
	})

	if len(entity.Attributes) != 1 {
		t.Fatalf("expected 1 merged attribute, got %d", len(entity.Attributes))
	}
	attr := entity.Attributes[0]
	if attr.Name != "email" {
		t.Errorf("expected canonical name email, got %q", attr.Name)
	}
	// typed scalar beats generic string
	if attr.Type != "email" {
		t.Errorf("expected type email by precedence, got %q", attr.Type)
	}
	if len(decisions) != 1 || decisions[0].Conflict != model.ConflictTypeMismatch {
		t.Fatalf("expected one type_mismatch decision, got %+v", decisions)
	}
}

func TestAttributeMerger_Merge_ConstraintRules(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("user")

	m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "email", Type: "email", Nullable: true, Confidence: 0.8}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "email", Type: "email", Nullable: false, Unique: true, Confidence: 0.7}, Pass: 1},
	})

	attr := entity.Attribute("email")
	if attr == nil {
		t.Fatal("email attribute missing")
	}
	// nullable only when every proposal agrees
	if attr.Nullable {
		t.Error("nullable must be false when any proposal disagrees")
	}
	// unique when any proposal claims it
	if !attr.Unique {
		t.Error("unique must hold when any proposal claims it")
	}
}

func TestAttributeMerger_Merge_SinglePKPrefersIDName(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("user")

	decisions := m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "id", Type: "int", PK: true, Confidence: 0.7}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "uuid", Type: "uuid", PK: true, Confidence: 0.9}, Pass: 1},
	})

	pks := 0
	for _, a := range entity.Attributes {
		if a.PK {
			pks++
		}
	}
	if pks != 1 {
		t.Fatalf("expected exactly 1 primary key, got %d", pks)
	}

	id := entity.Attribute("id")
	uuid := entity.Attribute("uuid")
	if id == nil || uuid == nil {
		t.Fatal("missing attribute")
	}
	if !id.PK {
		t.Error("id-named attribute must keep the primary key")
	}
	if uuid.PK {
		t.Error("uuid must be demoted")
	}
	if !uuid.Unique || uuid.Nullable {
		t.Error("demoted key must stay unique and non-null")
	}

	found := false
	for _, d := range decisions {
		if d.Conflict == model.ConflictPrimaryKey {
			found = true
			if len(d.Proposals) != 2 {
				t.Errorf("expected both claims in the record, got %v", d.Proposals)
			}
		}
	}
	if !found {
		t.Error("primary key conflict must be recorded")
	}
}

func TestAttributeMerger_Merge_PKConfidenceTieBreak(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("order")

	m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "code", Type: "string", PK: true, Confidence: 0.9}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "number", Type: "int", PK: true, Confidence: 0.6}, Pass: 1},
	})

	// no id-named claim: the highest-confidence one wins
	code := entity.Attribute("code")
	number := entity.Attribute("number")
	if code == nil || !code.PK {
		t.Error("highest-confidence claim must keep the primary key")
	}
	if number == nil || number.PK {
		t.Error("lower-confidence claim must be demoted")
	}
}

func TestAttributeMerger_Merge_PKNeverNullable(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("user")

	m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "id", Type: "uuid", PK: true, Nullable: true, Confidence: 0.8}, Pass: 0},
	})

	id := entity.Attribute("id")
	if id == nil || !id.PK {
		t.Fatal("id must be the primary key")
	}
	if id.Nullable {
		t.Error("primary key must not be nullable")
	}
}

func TestAttributeMerger_Merge_SortedOutput(t *testing.T) {
	m := NewAttributeMerger(normalize.New(normalize.Table{}))
	entity := newTestEntity("user")

	m.Merge(entity, []AttrProposal{
		{AttributeProposal: model.AttributeProposal{Name: "zip", Type: "string", Confidence: 0.8}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "age", Type: "int", Confidence: 0.8}, Pass: 0},
		{AttributeProposal: model.AttributeProposal{Name: "city", Type: "string", Confidence: 0.8}, Pass: 0},
	})

	want := []string{"age", "city", "zip"}
	for i, a := range entity.Attributes {
		if a.Name != want[i] {
			t.Errorf("position %d: got %q, want %q", i, a.Name, want[i])
		}
	}
}

func TestBaseType(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"decimal(10,2)", "decimal"},
		{"String", "string"},
		{" uuid ", "uuid"},
		{"", ""},
	}
	for _, c := range cases {
		if got := baseType(c.in); got != c.want {
			t.Errorf("baseType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

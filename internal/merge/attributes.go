package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

// Type precedence for conflict resolution: identifier types beat typed
// scalars, typed scalars beat the generic string fallback.
var typeRank = map[string]int{
	"uuid": 3, "cuid": 3,
	"int": 2, "bigint": 2, "float": 2, "decimal": 2, "boolean": 2,
	"date": 2, "datetime": 2, "email": 2, "url": 2, "json": 2, "text": 2,
	"string": 1,
}

func rankType(t string) int {
	if r, ok := typeRank[baseType(t)]; ok {
		return r
	}
	return 0
}

// baseType strips precision arguments: "decimal(10,2)" -> "decimal"
func baseType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i > 0 {
		return t[:i]
	}
	return t
}

// AttributeMerger merges attribute proposals for one resolved entity,
// detecting and resolving type and constraint conflicts.
type AttributeMerger struct {
	norm *normalize.Normalizer
}

// NewAttributeMerger creates an attribute merger
func NewAttributeMerger(norm *normalize.Normalizer) *AttributeMerger {
	return &AttributeMerger{norm: norm}
}

// Merge fills the entity's attribute set from its collected proposals.
// Proposals are grouped by normalized name (case and diacritic insensitive).
// Within a group: nullable holds only if every proposal agrees, unique and
// pk are claimed if any proposal claims them, and type disagreement is
// resolved by precedence and recorded. An attribute proposed by exactly one
// pass is kept; its reduced confidence comes from the aggregator's solo
// penalty. At most one attribute remains primary key per entity.
func (m *AttributeMerger) Merge(entity *model.Entity, proposals []AttrProposal) []model.Decision {
	groups := make(map[string][]AttrProposal)
	var names []string
	for _, p := range proposals {
		name := m.norm.AttributeName(p.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := groups[key]; !ok {
			names = append(names, key)
		}
		groups[key] = append(groups[key], p)
	}
	sort.Strings(names)

	var decisions []model.Decision
	entity.Attributes = entity.Attributes[:0]
	for _, key := range names {
		attr, ds := m.mergeGroup(entity.ID, groups[key])
		entity.Attributes = append(entity.Attributes, attr)
		decisions = append(decisions, ds...)
	}

	decisions = append(decisions, m.enforceSinglePK(entity)...)
	return decisions
}

func (m *AttributeMerger) mergeGroup(entityID string, group []AttrProposal) (model.Attribute, []model.Decision) {
	sort.SliceStable(group, func(i, j int) bool { return group[i].Pass < group[j].Pass })

	attr := model.Attribute{
		Name:     m.norm.AttributeName(group[0].Name),
		Type:     baseType(group[0].Type),
		Nullable: true,
	}
	if attr.Type == "" {
		attr.Type = "string"
	}

	types := make(map[string]bool)
	for _, p := range group {
		t := baseType(p.Type)
		if t == "" {
			t = "string"
		}
		types[t] = true
		if rankType(t) > rankType(attr.Type) {
			attr.Type = t
		}
		// nullable = AND, unique/pk = OR
		attr.Nullable = attr.Nullable && p.Nullable
		attr.Unique = attr.Unique || p.Unique
		attr.PK = attr.PK || p.PK
		attr.Sightings = append(attr.Sightings, model.Sighting{Pass: p.Pass, Confidence: p.Confidence})
	}
	if attr.PK {
		attr.Nullable = false
	}

	var decisions []model.Decision
	if len(types) > 1 {
		list := make([]string, 0, len(types))
		for t := range types {
			list = append(list, t)
		}
		sort.Strings(list)
		decisions = append(decisions, model.Decision{
			Element:    model.AttrKey(entityID, attr.Name),
			Conflict:   model.ConflictTypeMismatch,
			Proposals:  list,
			Resolution: fmt.Sprintf("type %q chosen by precedence", attr.Type),
		})
	}
	return attr, decisions
}

// enforceSinglePK resolves competing primary-key claims: the
// highest-confidence candidate named "id" (or id-suffixed) wins, the rest
// are demoted to unique non-key attributes.
func (m *AttributeMerger) enforceSinglePK(entity *model.Entity) []model.Decision {
	var claims []*model.Attribute
	for i := range entity.Attributes {
		if entity.Attributes[i].PK {
			claims = append(claims, &entity.Attributes[i])
		}
	}
	if len(claims) <= 1 {
		return nil
	}

	winner := claims[0]
	for _, c := range claims[1:] {
		if pkPreferred(c, winner) {
			winner = c
		}
	}

	var names []string
	for _, c := range claims {
		names = append(names, c.Name)
		if c != winner {
			c.PK = false
			c.Unique = true
			c.Nullable = false
		}
	}
	return []model.Decision{{
		Element:    model.AttrKey(entity.ID, winner.Name),
		Conflict:   model.ConflictPrimaryKey,
		Proposals:  names,
		Resolution: fmt.Sprintf("%q kept as primary key, others demoted to unique", winner.Name),
	}}
}

// pkPreferred reports whether a beats b as the primary key candidate
func pkPreferred(a, b *model.Attribute) bool {
	aID, bID := isIDName(a.Name), isIDName(b.Name)
	if aID != bID {
		return aID
	}
	ac, bc := maxConfidence(a.Sightings), maxConfidence(b.Sightings)
	if ac != bc {
		return ac > bc
	}
	return a.Name < b.Name
}

func isIDName(name string) bool {
	lower := strings.ToLower(name)
	return lower == "id" || (strings.HasSuffix(lower, "id") && lower != "uuid")
}

func maxConfidence(sightings []model.Sighting) float64 {
	var max float64
	for _, s := range sightings {
		if s.Confidence > max {
			max = s.Confidence
		}
	}
	return max
}

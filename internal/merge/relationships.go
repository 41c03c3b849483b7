package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
	"github.com/avillena/merforge/internal/score"
)

// RelProposal is a relationship proposal annotated with its source pass
type RelProposal struct {
	model.RelationshipProposal
	Pass int
}

// RelationshipResolver resolves relationship proposals' endpoint references
// against the resolved entity set, including foreign-key placement.
type RelationshipResolver struct {
	norm *normalize.Normalizer
	agg  *score.Aggregator
}

// NewRelationshipResolver creates a relationship resolver
func NewRelationshipResolver(norm *normalize.Normalizer, agg *score.Aggregator) *RelationshipResolver {
	return &RelationshipResolver{norm: norm, agg: agg}
}

type relGroup struct {
	fromID, toID string
	// proposals per claimed cardinality
	byCard map[model.Cardinality][]RelProposal
}

// Resolve turns relationship proposals into resolved relationships against
// the canonical entity set. Proposals whose endpoints do not resolve are
// dropped and recorded, never silently kept. Duplicate claims between the
// same ordered pair merge; conflicting cardinality claims are decided by
// aggregate confidence, the losers retained in the audit trail. Missing
// foreign keys are synthesized on the many-side entity; this is the one
// place an already-merged entity's attribute set is mutated, and it never
// introduces a second primary key.
func (r *RelationshipResolver) Resolve(proposals []RelProposal, entities ResolvedEntities) ([]*model.Relationship, []model.Decision, []model.OpenQuestion) {
	var decisions []model.Decision
	var questions []model.OpenQuestion

	groups := make(map[string]*relGroup)
	var keys []string
	for _, p := range proposals {
		fromID := r.norm.EntityID(p.From)
		toID := r.norm.EntityID(p.To)
		from := entities.Entity(fromID)
		to := entities.Entity(toID)
		if from == nil || to == nil {
			decisions = append(decisions, unresolvedDecision(p, fromID, toID, from == nil))
			continue
		}
		key := fromID + "\x00" + toID
		g, ok := groups[key]
		if !ok {
			g = &relGroup{fromID: fromID, toID: toID, byCard: make(map[model.Cardinality][]RelProposal)}
			groups[key] = g
			keys = append(keys, key)
		}
		g.byCard[p.Type] = append(g.byCard[p.Type], p)
	}
	sort.Strings(keys)

	var rels []*model.Relationship
	for _, key := range keys {
		g := groups[key]
		rel, ds := r.resolveGroup(g, entities)
		decisions = append(decisions, ds...)

		q, drop := r.placeForeignKey(rel, g, entities)
		if drop != nil {
			decisions = append(decisions, *drop)
			continue
		}
		if q != nil {
			questions = append(questions, *q)
		}
		rels = append(rels, rel)
	}

	sort.Slice(rels, func(i, j int) bool {
		if rels[i].From != rels[j].From {
			return rels[i].From < rels[j].From
		}
		if rels[i].To != rels[j].To {
			return rels[i].To < rels[j].To
		}
		return rels[i].Type < rels[j].Type
	})
	return rels, decisions, questions
}

func unresolvedDecision(p RelProposal, fromID, toID string, fromMissing bool) model.Decision {
	missing := toID
	if fromMissing {
		missing = fromID
	}
	return model.Decision{
		Element:   model.RelKey(normalize.DisplayName(fromID), normalize.DisplayName(toID)),
		Conflict:  model.ConflictUnresolvedRef,
		Proposals: []string{fmt.Sprintf("%s -> %s (%s)", p.From, p.To, p.Type)},
		Resolution: fmt.Sprintf("relationship dropped: endpoint %q does not resolve to a canonical entity",
			missing),
	}
}

// resolveGroup merges all proposals between one ordered pair into a single
// relationship, deciding cardinality conflicts by aggregate confidence.
func (r *RelationshipResolver) resolveGroup(g *relGroup, entities ResolvedEntities) (*model.Relationship, []model.Decision) {
	cards := make([]model.Cardinality, 0, len(g.byCard))
	for c := range g.byCard {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })

	winner := cards[0]
	winnerScore := r.cardScore(g.byCard[winner])
	for _, c := range cards[1:] {
		if s := r.cardScore(g.byCard[c]); s > winnerScore {
			winner, winnerScore = c, s
		}
	}

	from := entities.Entity(g.fromID)
	to := entities.Entity(g.toID)
	rel := &model.Relationship{
		From: from.Name,
		To:   to.Name,
		Type: winner,
	}
	for _, p := range g.byCard[winner] {
		rel.Sightings = append(rel.Sightings, model.Sighting{Pass: p.Pass, Confidence: p.Confidence})
	}

	if len(cards) < 2 {
		return rel, nil
	}
	var claims []string
	for _, c := range cards {
		claims = append(claims, fmt.Sprintf("%s (%.2f)", c, r.cardScore(g.byCard[c])))
	}
	return rel, []model.Decision{{
		Element:    model.RelKey(from.Name, to.Name),
		Conflict:   model.ConflictCardinality,
		Proposals:  claims,
		Resolution: fmt.Sprintf("cardinality %q kept by aggregate confidence", winner),
	}}
}

func (r *RelationshipResolver) cardScore(props []RelProposal) float64 {
	var sightings []model.Sighting
	for _, p := range props {
		sightings = append(sightings, model.Sighting{Pass: p.Pass, Confidence: p.Confidence})
	}
	return r.agg.Base(sightings)
}

// placeForeignKey resolves or synthesizes the relationship's foreign key.
// The referencing attribute lives on the many side (many-to-one: from,
// one-to-many: to); for one-to-one it lives on the entity proposed later.
// Many-to-many pairs carry no single-sided key and are left to the
// projector's join handling. An explicit reference to a nonexistent target
// attribute drops the relationship with an unresolved-reference record.
func (r *RelationshipResolver) placeForeignKey(rel *model.Relationship, g *relGroup, entities ResolvedEntities) (*model.OpenQuestion, *model.Decision) {
	from := entities.Entity(g.fromID)
	to := entities.Entity(g.toID)

	var owner, target *model.Entity
	var question *model.OpenQuestion
	switch rel.Type {
	case model.ManyToOne:
		owner, target = from, to
	case model.OneToMany:
		owner, target = to, from
	case model.OneToOne:
		owner, target = from, to
		if to.FirstSeen > from.FirstSeen {
			owner, target = to, from
		}
		if to.FirstSeen == from.FirstSeen {
			question = &model.OpenQuestion{
				Question: fmt.Sprintf("one-to-one %s-%s: foreign key placed on %q by default; placement ambiguous, review",
					from.Name, to.Name, owner.Name),
			}
		}
	case model.ManyToMany:
		return nil, nil
	default:
		return nil, nil
	}

	// explicit proposal wins over convention
	cards := make([]model.Cardinality, 0, len(g.byCard))
	for c := range g.byCard {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i] < cards[j] })
	var proposed *model.ForeignKeyProposal
	for _, c := range cards {
		for _, p := range g.byCard[c] {
			if p.FK != nil && (p.FK.Attribute != "" || p.FK.Ref != "") && proposed == nil {
				proposed = p.FK
			}
		}
	}

	attrName := ""
	refAttr := ""
	if proposed != nil {
		if proposed.Attribute != "" {
			attrName = r.norm.AttributeName(proposed.Attribute)
		}
		if proposed.Ref != "" {
			if _, a, ok := strings.Cut(proposed.Ref, "."); ok {
				refAttr = r.norm.AttributeName(a)
			} else {
				refAttr = r.norm.AttributeName(proposed.Ref)
			}
		}
	}
	if refAttr != "" && target.Attribute(refAttr) == nil {
		return nil, &model.Decision{
			Element:   model.RelKey(from.Name, to.Name),
			Conflict:  model.ConflictUnresolvedRef,
			Proposals: []string{fmt.Sprintf("fk ref %s", proposed.Ref)},
			Resolution: fmt.Sprintf("relationship dropped: %q is not an attribute of %q",
				refAttr, target.Name),
		}
	}
	if attrName == "" {
		attrName = lowerFirst(target.Name) + "Id"
	}
	if refAttr == "" {
		if pk := target.PrimaryKey(); pk != nil {
			refAttr = pk.Name
		} else {
			refAttr = "id"
		}
	}

	rel.FK = &model.ForeignKey{
		Attribute: attrName,
		Ref:       target.Name + "." + refAttr,
	}

	// insert the referencing attribute if the owner does not carry it yet;
	// never as a primary key, so the single-PK invariant holds
	if owner.Attribute(attrName) == nil {
		fkType := "int"
		if ref := target.Attribute(refAttr); ref != nil {
			fkType = ref.Type
		}
		owner.Attributes = append(owner.Attributes, model.Attribute{
			Name:      attrName,
			Type:      fkType,
			Unique:    rel.Type == model.OneToOne,
			Sightings: append([]model.Sighting(nil), rel.Sightings...),
		})
		sort.Slice(owner.Attributes, func(i, j int) bool {
			return strings.ToLower(owner.Attributes[i].Name) < strings.ToLower(owner.Attributes[j].Name)
		})
	}
	return question, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Package merge implements the merge & consistency resolution engine: it
// reduces the possibly redundant, inconsistent outputs of independent
// inference passes to one canonical entity-relationship model, with resolved
// identities, deduplicated attributes, validated references, and an audit
// trail of every non-trivial conflict.
package merge

import (
	"fmt"
	"sort"

	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

// AttrProposal is an attribute proposal annotated with its source pass
type AttrProposal struct {
	model.AttributeProposal
	Pass int
}

// ResolvedEntities is the output of entity identity resolution: the
// deduplicated entity set (attributes still empty) plus the attribute
// proposals collected per entity, in pass order, ready for the attribute
// merger.
type ResolvedEntities struct {
	Entities   []*model.Entity
	Attributes map[string][]AttrProposal
	Decisions  []model.Decision
}

// Entity returns the resolved entity with the given id, or nil
func (r ResolvedEntities) Entity(id string) *model.Entity {
	for _, e := range r.Entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// EntityResolver merges per-pass entity proposals into a deduplicated
// entity set keyed by normalized id.
type EntityResolver struct {
	norm *normalize.Normalizer
	cfg  model.MergeConfig
}

// NewEntityResolver creates an entity resolver
func NewEntityResolver(norm *normalize.Normalizer, cfg model.MergeConfig) *EntityResolver {
	return &EntityResolver{norm: norm, cfg: cfg}
}

type entityProposal struct {
	model.EntityProposal
	pass    int
	ordinal int // position within the pass's entity list
}

type entityGroup struct {
	id        string
	proposals []entityProposal
}

// Resolve groups proposals by normalized id and merges each group into one
// canonical entity. The description comes from the highest-confidence
// proposal, ties broken by first-seen pass order. A group containing more
// than one distinct raw label produces a name-collision decision. Entities
// proposed by a single pass below the acceptance threshold are retained as
// tentative, never dropped. Output ordering is by id, independent of the
// order pass results were supplied.
func (r *EntityResolver) Resolve(passes []model.PassResult) ResolvedEntities {
	groups := make(map[string]*entityGroup)
	for _, pr := range passes {
		for i, ep := range pr.Entities {
			id := r.norm.EntityID(ep.RawName)
			if id == "" {
				continue
			}
			g, ok := groups[id]
			if !ok {
				g = &entityGroup{id: id}
				groups[id] = g
			}
			g.proposals = append(g.proposals, entityProposal{ep, pr.Pass, i})
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := ResolvedEntities{
		Attributes: make(map[string][]AttrProposal, len(groups)),
	}
	for _, id := range ids {
		g := groups[id]
		entity, decision := r.mergeGroup(g)
		res.Entities = append(res.Entities, entity)
		if decision != nil {
			res.Decisions = append(res.Decisions, *decision)
		}
		for _, p := range g.proposals {
			for _, ap := range p.Attributes {
				res.Attributes[id] = append(res.Attributes[id], AttrProposal{ap, p.pass})
			}
		}
	}
	return res
}

func (r *EntityResolver) mergeGroup(g *entityGroup) (*model.Entity, *model.Decision) {
	// First-seen pass order, regardless of how the pass slice was supplied
	sort.SliceStable(g.proposals, func(i, j int) bool {
		if g.proposals[i].pass != g.proposals[j].pass {
			return g.proposals[i].pass < g.proposals[j].pass
		}
		return g.proposals[i].ordinal < g.proposals[j].ordinal
	})

	best := g.proposals[0]
	passes := make(map[int]bool)
	labels := make(map[string]bool)
	var labelList []string
	var sightings []model.Sighting

	for _, p := range g.proposals {
		passes[p.pass] = true
		if !labels[p.RawName] {
			labels[p.RawName] = true
			labelList = append(labelList, p.RawName)
		}
		sightings = append(sightings, model.Sighting{Pass: p.pass, Confidence: p.Confidence})
		if p.Confidence > best.Confidence {
			best = p
		}
	}

	entity := &model.Entity{
		ID:          g.id,
		Name:        normalize.DisplayName(g.id),
		Description: best.Description,
		Sightings:   sightings,
		FirstSeen:   g.proposals[0].pass<<16 | g.proposals[0].ordinal,
	}
	if len(passes) == 1 && best.Confidence < r.cfg.AcceptanceThreshold {
		entity.Tentative = true
	}

	if len(labelList) < 2 {
		return entity, nil
	}
	sort.Strings(labelList)
	return entity, &model.Decision{
		Element:   g.id,
		Conflict:  model.ConflictNameCollision,
		Proposals: labelList,
		Resolution: fmt.Sprintf("%d labels resolved to %q, description from %q (confidence %.2f)",
			len(labelList), g.id, best.RawName, best.Confidence),
	}
}

package score

import (
	"github.com/avillena/merforge/internal/model"
)

// Aggregator computes final confidence scores from per-pass sightings and
// recorded conflicts. Base score is a weighted mean where later passes carry
// configurable higher weight; every conflict recorded against the same
// element multiplies the result by a penalty factor. Scores are clamped to
// [0,1] and adding a corroborating sighting at or above the current score
// never lowers it.
type Aggregator struct {
	cfg model.MergeConfig
}

// NewAggregator creates an aggregator with the given merge configuration
func NewAggregator(cfg model.MergeConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Base returns the weighted mean of per-pass confidences, without penalties.
// Used during merge when provisional scores are needed (e.g. cardinality
// conflict resolution).
func (a *Aggregator) Base(sightings []model.Sighting) float64 {
	if len(sightings) == 0 {
		return 0
	}
	var sum, weight float64
	for _, s := range sightings {
		w := 1 + a.cfg.PassWeightGain*float64(s.Pass)
		sum += w * s.Confidence
		weight += w
	}
	return clamp(sum / weight)
}

// Aggregate returns the final confidence for an element: the weighted base
// mean, reduced once for single-pass elements and once per recorded conflict.
func (a *Aggregator) Aggregate(sightings []model.Sighting, conflicts int) float64 {
	score := a.Base(sightings)
	if len(sightings) == 1 {
		score *= a.cfg.SoloPenalty
	}
	for i := 0; i < conflicts; i++ {
		score *= a.cfg.ConflictPenalty
	}
	return clamp(score)
}

// Finalize assigns final confidence scores to every entity, attribute, and
// relationship of the model, counting the conflicts recorded against each
// element in the decision trail. The model's structure is not changed.
func (a *Aggregator) Finalize(m *model.MER, decisions []model.Decision) {
	conflicts := make(map[string]int, len(decisions))
	for _, d := range decisions {
		conflicts[d.Element]++
	}

	for _, e := range m.Entities {
		e.Confidence = a.Aggregate(e.Sightings, conflicts[e.ID])
		for i := range e.Attributes {
			attr := &e.Attributes[i]
			attr.Confidence = a.Aggregate(attr.Sightings, conflicts[model.AttrKey(e.ID, attr.Name)])
		}
	}
	for _, r := range m.Relationships {
		key := model.RelKey(r.From, r.To)
		r.Confidence = a.Aggregate(r.Sightings, conflicts[key])
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avillena/merforge/internal/model"
)

// rawPassResult mirrors the JSON a pass emits, before boundary validation
type rawPassResult struct {
	Entities      []rawEntity                  `json:"entities"`
	Relationships []model.RelationshipProposal `json:"relationships"`
	OpenQuestions []model.OpenQuestion         `json:"open_questions"`
}

type rawEntity struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Aliases     []string                  `json:"aliases"`
	Attributes  []model.AttributeProposal `json:"attributes"`
	Sources     []string                  `json:"sources"`
	Confidence  float64                   `json:"confidence"`
}

// DecodePassResult decodes one pass's JSON output into validated proposals.
// Malformed elements (empty names, confidence outside [0,1], unknown
// cardinality) are excluded and reported, never repaired; a reject does
// not abort the pass. Only undecodable JSON is an error.
func DecodePassResult(data []byte, pass int, id string) (model.PassResult, []string, error) {
	var raw rawPassResult
	if err := json.Unmarshal([]byte(StripFence(string(data))), &raw); err != nil {
		return model.PassResult{}, nil, fmt.Errorf("pass %s: decode result: %w", id, err)
	}

	result := model.PassResult{Pass: pass, ID: id, OpenQuestions: raw.OpenQuestions}
	var rejects []string

	for i, e := range raw.Entities {
		if e.Name == "" {
			rejects = append(rejects, fmt.Sprintf("pass %s: entity %d: missing name", id, i))
			continue
		}
		if !inRange(e.Confidence) {
			rejects = append(rejects, fmt.Sprintf("pass %s: entity %q: confidence %v out of [0,1]", id, e.Name, e.Confidence))
			continue
		}
		ep := model.EntityProposal{
			RawName:     e.Name,
			Description: e.Description,
			Aliases:     e.Aliases,
			Sources:     e.Sources,
			Confidence:  e.Confidence,
		}
		for _, a := range e.Attributes {
			switch {
			case a.Name == "":
				rejects = append(rejects, fmt.Sprintf("pass %s: entity %q: attribute with missing name", id, e.Name))
			case !inRange(a.Confidence):
				rejects = append(rejects, fmt.Sprintf("pass %s: attribute %s.%s: confidence %v out of [0,1]", id, e.Name, a.Name, a.Confidence))
			default:
				ep.Attributes = append(ep.Attributes, a)
			}
		}
		result.Entities = append(result.Entities, ep)
	}

	for i, r := range raw.Relationships {
		switch {
		case r.From == "" || r.To == "":
			rejects = append(rejects, fmt.Sprintf("pass %s: relationship %d: missing endpoint", id, i))
		case !model.ValidCardinality(r.Type):
			rejects = append(rejects, fmt.Sprintf("pass %s: relationship %s->%s: unknown cardinality %q", id, r.From, r.To, r.Type))
		case !inRange(r.Confidence):
			rejects = append(rejects, fmt.Sprintf("pass %s: relationship %s->%s: confidence %v out of [0,1]", id, r.From, r.To, r.Confidence))
		default:
			result.Relationships = append(result.Relationships, r)
		}
	}

	return result, rejects, nil
}

// DecodeReviewReport decodes the review pass's advisory findings. Issues
// with an empty message or a level other than warning/error are excluded
// and reported; an unrecognized status is cleared and reported. As with
// pass results, only undecodable JSON is an error.
func DecodeReviewReport(data []byte, id string) (*model.ReviewReport, []string, error) {
	var raw model.ReviewReport
	if err := json.Unmarshal([]byte(StripFence(string(data))), &raw); err != nil {
		return nil, nil, fmt.Errorf("pass %s: decode report: %w", id, err)
	}

	report := &model.ReviewReport{}
	var rejects []string

	switch raw.Status {
	case "", "ok", "warnings", "errors":
		report.Status = raw.Status
	default:
		rejects = append(rejects, fmt.Sprintf("pass %s: unknown status %q", id, raw.Status))
	}

	for i, issue := range raw.Issues {
		switch {
		case issue.Message == "":
			rejects = append(rejects, fmt.Sprintf("pass %s: issue %d: missing message", id, i))
		case issue.Level != model.SeverityWarning && issue.Level != model.SeverityError:
			rejects = append(rejects, fmt.Sprintf("pass %s: issue %d: unknown level %q", id, i, issue.Level))
		default:
			report.Issues = append(report.Issues, issue)
		}
	}

	return report, rejects, nil
}

// StripFence removes a markdown code fence around a JSON payload, which
// models emit despite JSON-only instructions
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func inRange(c float64) bool {
	return c >= 0 && c <= 1
}

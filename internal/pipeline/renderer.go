package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avillena/merforge/internal/model"
)

// Renderer writes the final model and the diagnostics report. Output is
// deterministic: element ordering is fixed by the merge engine, and maps
// never reach the serializer.
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// MarshalModel serializes a model to indented JSON
func MarshalModel(m *model.MER) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// RenderModel writes the final model as JSON
func (r *Renderer) RenderModel(m *model.MER, path string) error {
	data, err := MarshalModel(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderDiagnostics writes the decision trail and validation report as JSON
func (r *Renderer) RenderDiagnostics(d model.Diagnostics, path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderSummary prints a run summary to stdout
func (r *Renderer) RenderSummary(res *Result) {
	m := res.Model
	fmt.Printf("Stage:          %s\n", res.Stage)
	if m == nil {
		return
	}
	tentative := 0
	for _, e := range m.Entities {
		if e.Tentative {
			tentative++
		}
	}
	fmt.Printf("Entities:       %d (%d tentative)\n", len(m.Entities), tentative)
	fmt.Printf("Relationships:  %d\n", len(m.Relationships))
	fmt.Printf("Decisions:      %d\n", len(res.Diagnostics.Decisions))
	warnings, errs := 0, 0
	for _, v := range res.Diagnostics.Violations {
		if v.Severity == model.SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	fmt.Printf("Violations:     %d errors, %d warnings\n", errs, warnings)
	if rev := res.Diagnostics.Review; rev != nil && len(rev.Issues) > 0 {
		fmt.Printf("Review:         %d findings\n", len(rev.Issues))
	}
	if len(res.Diagnostics.Malformed) > 0 {
		fmt.Printf("Rejected input: %d malformed proposals\n", len(res.Diagnostics.Malformed))
	}
	for _, v := range res.Diagnostics.Violations {
		fmt.Printf("  - %s\n", v)
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

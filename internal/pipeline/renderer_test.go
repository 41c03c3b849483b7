package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/avillena/merforge/internal/model"
)

func TestRenderer_RenderModel(t *testing.T) {
	p := testPipeline()
	result, err := p.Merge(MergeInput{Passes: fixturePasses()})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "mer.json")
	if err := NewRenderer().RenderModel(result.Model, path); err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.MER
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Entities) != len(result.Model.Entities) {
		t.Error("entities lost in rendering")
	}

	// timestamps are opt-in, so an unrendered model stays reproducible
	if bytes.Contains(data, []byte("generated_at")) {
		t.Error("unset timestamp must not be serialized")
	}

	// internal bookkeeping never reaches the serialized model
	if bytes.Contains(data, []byte("Sightings")) || bytes.Contains(data, []byte("FirstSeen")) {
		t.Error("internal fields leaked into the output")
	}
}

func TestRenderer_RenderDiagnostics(t *testing.T) {
	p := testPipeline()
	result, err := p.Merge(MergeInput{
		Passes:    fixturePasses(),
		Malformed: []string{"pass entities: entity 3: missing name"},
	})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "diagnostics.json")
	if err := NewRenderer().RenderDiagnostics(result.Diagnostics, path); err != nil {
		t.Fatalf("render: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.Diagnostics
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Decisions) != len(result.Diagnostics.Decisions) {
		t.Error("decisions lost in rendering")
	}
	if len(decoded.Malformed) != 1 {
		t.Error("boundary rejects lost in rendering")
	}
}

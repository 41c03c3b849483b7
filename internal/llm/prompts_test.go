package llm

import (
	"strings"
	"testing"
)

type promptPack struct {
	Screens []string `json:"screens"`
}

func TestBuildEntitiesPrompt(t *testing.T) {
	prompt, err := BuildEntitiesPrompt(promptPack{Screens: []string{"Inicio de Sesión"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "CONTEXT PACK:") {
		t.Error("prompt must embed the context pack")
	}
	if !strings.Contains(prompt, "Inicio de Sesión") {
		t.Error("pack content must survive into the prompt")
	}
	if !strings.Contains(prompt, "entities") {
		t.Error("prompt must state the expected output shape")
	}
}

func TestBuildAttributesPrompt(t *testing.T) {
	prompt, err := BuildAttributesPrompt(promptPack{}, map[string]string{"name": "User"}, []string{"User", "Project"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "TARGET ENTITIES:") || !strings.Contains(prompt, "User, Project") {
		t.Error("prompt must name the target entities")
	}
	if !strings.Contains(prompt, "PARTIAL MODEL") {
		t.Error("prompt must carry the partial model")
	}
}

func TestBuildRelationshipsPrompt(t *testing.T) {
	prompt, err := BuildRelationshipsPrompt(promptPack{}, map[string]string{"name": "User"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "many-to-one") {
		t.Error("prompt must enumerate the cardinality vocabulary")
	}
	if !strings.Contains(prompt, "CONTEXT PACK:") {
		t.Error("prompt must embed the context pack")
	}
}

func TestBuildReviewPrompt(t *testing.T) {
	prompt, err := BuildReviewPrompt(map[string]string{"name": "shop"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "COMPLETE MODEL:") || !strings.Contains(prompt, "shop") {
		t.Error("prompt must embed the merged model")
	}
	if !strings.Contains(prompt, "issues") || !strings.Contains(prompt, "status") {
		t.Error("prompt must state the expected report shape")
	}
	if !strings.Contains(prompt, "Do not modify the model") {
		t.Error("prompt must forbid model edits")
	}
}

func TestSystemPrompt_Contract(t *testing.T) {
	for _, want := range []string{"JSON", "confidence", "open_questions", "sources"} {
		if !strings.Contains(SystemPrompt, want) {
			t.Errorf("system contract missing %q", want)
		}
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/avillena/merforge/internal/extract"
	"github.com/avillena/merforge/internal/model"
	"github.com/avillena/merforge/internal/normalize"
)

const (
	entitiesResponse = `{"entities": [
		{"name": "Login", "description": "Account used to sign in", "confidence": 0.8},
		{"name": "Proyectos", "confidence": 0.7}
	]}`
	attributesResponse = `{"entities": [
		{"name": "Login", "confidence": 0.8, "attributes": [
			{"name": "id", "type": "uuid", "pk": true, "confidence": 0.9},
			{"name": "email", "type": "email", "unique": true, "confidence": 0.9}
		]},
		{"name": "Proyectos", "confidence": 0.8, "attributes": [
			{"name": "id", "type": "uuid", "pk": true, "confidence": 0.9},
			{"name": "nombre", "type": "string", "confidence": 0.8}
		]}
	]}`
	relationshipsResponse = `{"relationships": [
		{"from": "Proyectos", "to": "Login", "type": "many-to-one", "confidence": 0.8}
	]}`
	reviewResponse = `{"status": "warnings", "issues": [
		{"level": "warning", "code": "MISSING_INDEX", "message": "Consider adding an index on User.email"}
	]}`
)

// fakeProviderServer emulates the local-model generate endpoint, picking the
// canned response by pass markers in the prompt
func fakeProviderServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		response := entitiesResponse
		switch {
		case strings.Contains(req.Prompt, "COMPLETE MODEL:"):
			response = reviewResponse
		case strings.Contains(req.Prompt, "TARGET ENTITIES:"):
			response = attributesResponse
		case strings.Contains(req.Prompt, "RELATIONSHIPS"):
			response = relationshipsResponse
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    "llama3.1",
			"response": response,
			"done":     true,
		})
	}))
}

func testGenConfig(baseURL string) *model.Config {
	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = baseURL
	cfg.LLM.RatePerSec = 1000
	cfg.LLM.Burst = 100
	cfg.Cache.Enabled = false
	return cfg
}

func testPack() *extract.ContextPack {
	return &extract.ContextPack{
		Screens: []extract.Screen{
			{Name: "Inicio de Sesión", Components: []extract.Component{
				{Name: "Correo electrónico", Type: "input"},
			}},
			{Name: "Proyectos"},
		},
	}
}

func TestPipeline_Generate_EndToEnd(t *testing.T) {
	server := fakeProviderServer(t, nil)
	defer server.Close()

	cfg := testGenConfig(server.URL)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	p := New(cfg, normalize.New(normalize.Table{}), runner)

	result, err := p.Generate(context.Background(), testPack())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Stage != StageAccepted {
		t.Fatalf("expected accepted, got %s", result.Stage)
	}
	if len(result.Model.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(result.Model.Entities))
	}
	if result.Model.Entity("user") == nil || result.Model.Entity("project") == nil {
		t.Error("canonical entities missing")
	}
	if len(result.Model.Relationships) != 1 {
		t.Errorf("expected 1 relationship, got %d", len(result.Model.Relationships))
	}
	rev := result.Diagnostics.Review
	if rev == nil || len(rev.Issues) != 1 || rev.Issues[0].Code != "MISSING_INDEX" {
		t.Errorf("review findings not carried into diagnostics: %+v", rev)
	}
}

func TestRunner_FailedReviewDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		response := entitiesResponse
		switch {
		case strings.Contains(req.Prompt, "COMPLETE MODEL:"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "overloaded"}`))
			return
		case strings.Contains(req.Prompt, "TARGET ENTITIES:"):
			response = attributesResponse
		case strings.Contains(req.Prompt, "RELATIONSHIPS"):
			response = relationshipsResponse
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
	}))
	defer server.Close()

	cfg := testGenConfig(server.URL)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	p := New(cfg, normalize.New(normalize.Table{}), runner)

	result, err := p.Generate(context.Background(), testPack())
	if err != nil {
		t.Fatalf("a failed review must degrade, not abort: %v", err)
	}
	if result.Stage != StageAccepted {
		t.Errorf("model acceptance must not depend on the review pass, got %s", result.Stage)
	}
	if result.Diagnostics.Review != nil {
		t.Errorf("no review findings expected from a failed pass, got %+v", result.Diagnostics.Review)
	}
}

func TestPipeline_Generate_Offline(t *testing.T) {
	cfg := model.DefaultConfig() // no provider configured
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner != nil {
		t.Fatal("no provider must mean no runner")
	}

	p := New(cfg, normalize.New(normalize.Table{}), nil)
	if _, err := p.Generate(context.Background(), testPack()); err == nil {
		t.Error("generate without a provider must error")
	}
}

func TestRunner_CachesPassResponses(t *testing.T) {
	var calls int32
	server := fakeProviderServer(t, &calls)
	defer server.Close()

	cfg := testGenConfig(server.URL)
	cfg.Cache.Enabled = true
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	p := New(cfg, normalize.New(normalize.Table{}), runner)

	if _, err := p.Generate(context.Background(), testPack()); err != nil {
		t.Fatal(err)
	}
	first := atomic.LoadInt32(&calls)

	if _, err := p.Generate(context.Background(), testPack()); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != first {
		t.Errorf("identical run must be served from cache, calls went %d -> %d",
			first, atomic.LoadInt32(&calls))
	}
}

func TestRunner_FailedPassDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Prompt, "RELATIONSHIPS") {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": "overloaded"}`))
			return
		}
		response := entitiesResponse
		if strings.Contains(req.Prompt, "TARGET ENTITIES:") {
			response = attributesResponse
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
	}))
	defer server.Close()

	cfg := testGenConfig(server.URL)
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	p := New(cfg, normalize.New(normalize.Table{}), runner)

	result, err := p.Generate(context.Background(), testPack())
	if err != nil {
		t.Fatalf("a failed pass must degrade, not abort: %v", err)
	}
	if len(result.Model.Relationships) != 0 {
		t.Errorf("expected no relationships from the failed pass, got %d", len(result.Model.Relationships))
	}
	if len(result.Model.Entities) != 2 {
		t.Errorf("entities must still resolve, got %d", len(result.Model.Entities))
	}
}

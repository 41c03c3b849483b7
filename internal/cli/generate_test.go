package cli

import (
	"testing"
	"time"

	"github.com/avillena/merforge/internal/model"
	"github.com/spf13/viper"
)

func TestApplyFileConfig_OverlaysDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("llm.provider", "ollama")
	viper.Set("llm.rate_per_sec", 5.0)
	viper.Set("merge.acceptance_threshold", 0.7)
	viper.Set("cache.enabled", false)
	viper.Set("cache.memory_ttl", "45m")

	cfg := model.DefaultConfig()
	if err := applyFileConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("llm.provider not applied, got %q", cfg.LLM.Provider)
	}
	if cfg.LLM.RatePerSec != 5.0 {
		t.Errorf("llm.rate_per_sec not applied, got %v", cfg.LLM.RatePerSec)
	}
	if cfg.Merge.AcceptanceThreshold != 0.7 {
		t.Errorf("merge.acceptance_threshold not applied, got %v", cfg.Merge.AcceptanceThreshold)
	}
	if cfg.Cache.Enabled {
		t.Error("cache.enabled not applied")
	}
	if cfg.Cache.MemoryTTL != 45*time.Minute {
		t.Errorf("cache.memory_ttl not applied, got %v", cfg.Cache.MemoryTTL)
	}

	// Keys absent from the file keep their defaults
	if cfg.Merge.SoloPenalty != 0.85 {
		t.Errorf("solo penalty default lost, got %v", cfg.Merge.SoloPenalty)
	}
	if cfg.Concurrency.PassWorkers != 4 {
		t.Errorf("pass workers default lost, got %v", cfg.Concurrency.PassWorkers)
	}
}

func TestApplyFileConfig_NeverReadsAPIKeyFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("llm.api_key", "from-file")

	cfg := model.DefaultConfig()
	if err := applyFileConfig(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("api key must come from the environment only, got %q", cfg.LLM.APIKey)
	}
}

func TestBuildConfig_FileProviderBeatsFlagDefault(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("llm.provider", "ollama")

	cfg, err := buildConfig(generateCmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("unset provider flag must yield to the config file, got %q", cfg.LLM.Provider)
	}
}

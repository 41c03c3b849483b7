package model

import "time"

// Config is the complete merforge configuration
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Merge       MergeConfig       `yaml:"merge"`
	Normalize   NormalizeConfig   `yaml:"normalize"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Cache       CacheConfig       `yaml:"cache"`
	Output      OutputConfig      `yaml:"output"`
}

// LLMConfig configures the inference-pass provider
type LLMConfig struct {
	Provider   string  `yaml:"provider"` // openai, anthropic, ollama, "" (offline)
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"api_key,omitempty"`
	BaseURL    string  `yaml:"base_url,omitempty"`
	Timeout    int     `yaml:"timeout"` // seconds per call
	MaxTokens  int     `yaml:"max_tokens"`
	RatePerSec float64 `yaml:"rate_per_sec"` // provider call rate limit
	Burst      int     `yaml:"burst"`
	HTTPProxy  string  `yaml:"http_proxy,omitempty"`
	HTTPSProxy string  `yaml:"https_proxy,omitempty"`
}

// MergeConfig tunes the merge and confidence resolution engine
type MergeConfig struct {
	// AcceptanceThreshold marks single-pass entities below it as tentative
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`
	// ConflictPenalty multiplies an element's confidence once per recorded conflict
	ConflictPenalty float64 `yaml:"conflict_penalty"`
	// SoloPenalty multiplies the confidence of elements seen by exactly one pass
	SoloPenalty float64 `yaml:"solo_penalty"`
	// PassWeightGain raises the weight of later passes: weight = 1 + gain*pass
	PassWeightGain float64 `yaml:"pass_weight_gain"`
}

// NormalizeConfig configures identity resolution
type NormalizeConfig struct {
	// SynonymFile is an optional YAML synonym table merged over the built-ins
	SynonymFile string `yaml:"synonym_file,omitempty"`
}

// ConcurrencyConfig bounds fan-out at the orchestrator boundary
type ConcurrencyConfig struct {
	PassWorkers int `yaml:"pass_workers"` // concurrent attribute-pass calls
	EntityBatch int `yaml:"entity_batch"` // entities per attribute-pass call
}

// CacheConfig configures pass-response caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Dir       string        `yaml:"dir,omitempty"`
	MemoryTTL time.Duration `yaml:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Verbose     bool `yaml:"verbose"`
	Diagnostics bool `yaml:"diagnostics"` // write the decision/violation report
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "",
			Timeout:    60,
			MaxTokens:  4000,
			RatePerSec: 1,
			Burst:      2,
		},
		Merge: MergeConfig{
			AcceptanceThreshold: 0.5,
			ConflictPenalty:     0.85,
			SoloPenalty:         0.85,
			PassWeightGain:      0.25,
		},
		Concurrency: ConcurrencyConfig{
			PassWorkers: 4,
			EntityBatch: 8,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Output: OutputConfig{
			Diagnostics: true,
		},
	}
}

// Package cache stores raw inference-pass responses keyed by prompt, so
// repeated runs over the same context pack do not re-bill the provider.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PromptKey generates a cache key from a provider/model/prompt triple.
// The prompt embeds the full context pack, so identical inputs hit.
func PromptKey(provider, model, prompt string) string {
	hash := sha256.Sum256([]byte(provider + "\x00" + model + "\x00" + prompt))
	return "merforge:v1:" + hex.EncodeToString(hash[:])
}

// Package cache provides the response cache used to make external service
// calls idempotent across retries and re-runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/narralabs/narra-core/internal/config"
)

// ErrNotFound is returned on a cache miss.
var ErrNotFound = errors.New("cache: entry not found")

// Store is a byte-oriented key/value cache. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// keyPayloadPrefix bounds how much of the request payload feeds the digest.
const keyPayloadPrefix = 1000

// Key derives a deterministic cache key from the request payload, the prompt
// and the model identifier. Only a prefix of the payload is digested so very
// long inputs hash in constant time.
func Key(payload, prompt, model string) string {
	if len(payload) > keyPayloadPrefix {
		payload = payload[:keyPayloadPrefix]
	}
	sum := sha256.Sum256([]byte(payload + ":" + prompt + ":" + model))
	return hex.EncodeToString(sum[:])
}

// New builds a Store from configuration. A disabled cache yields nil, which
// callers treat as "no caching".
func New(cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "memory":
		return NewMemory(cfg.Capacity)
	case "redis":
		return NewRedis(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

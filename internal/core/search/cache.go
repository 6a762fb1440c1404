package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const cacheKeyPrefix = "hs"

// cacheKey derives a deterministic key from the query, the caller and
// the normalized options. Any option change (filters, threshold,
// limit) changes the key and forces a miss. Keys are grouped by user
// so per-user invalidation is a prefix delete.
func cacheKey(mode, query, userID string, opts any) string {
	payload, err := json.Marshal(opts)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", opts))
	}

	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write(payload)
	digest := hex.EncodeToString(h.Sum(nil))

	return fmt.Sprintf("%s:%s:%s:%s", cacheKeyPrefix, userID, mode, digest)
}

func userCachePrefix(userID string) string {
	return fmt.Sprintf("%s:%s:", cacheKeyPrefix, userID)
}

// cacheGet is a pure optimization: every failure is logged and treated
// as a miss, never surfaced to the search path.
func cacheGet[T any](ctx context.Context, e *Engine, key string) (*T, bool) {
	if e.cache == nil {
		return nil, false
	}

	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache_read_failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		slog.Warn("cache_decode_failed", "key", key, "error", err)
		return nil, false
	}
	return &value, true
}

func cacheSet(ctx context.Context, e *Engine, key string, value any, ttl time.Duration) {
	if e.cache == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache_encode_failed", "key", key, "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, raw, ttl); err != nil {
		slog.Warn("cache_write_failed", "key", key, "error", err)
	}
}

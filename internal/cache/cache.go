package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"vk-comments-exporter/internal/comments"
)

// Cache stores opaque values with an optional TTL. A zero TTL never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key identifies one aggregation. The token is hashed so credentials never
// appear in cache keys, and different credentials never share an entry.
func Key(ownerID, videoID int64, token string) string {
	sum := sha256.Sum256([]byte(token))
	return "comments:" + strconv.FormatInt(ownerID, 10) + "_" + strconv.FormatInt(videoID, 10) + ":" + hex.EncodeToString(sum[:8])
}

// GetResult returns a cached aggregation. A nil cache always misses.
func GetResult(ctx context.Context, c Cache, key string) (comments.Result, bool, error) {
	if c == nil {
		return comments.Result{}, false, nil
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return comments.Result{}, false, err
	}
	var res comments.Result
	if err := json.Unmarshal(b, &res); err != nil {
		_ = c.Delete(ctx, key)
		return comments.Result{}, false, nil
	}
	return res, true, nil
}

func SetResult(ctx context.Context, c Cache, key string, res comments.Result, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, b, ttl)
}

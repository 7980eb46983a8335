package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// resultCache is an optional Redis-backed cache of off-target scan
// results, keyed by (shard, query). Off-target scans of the same guide
// are commonly repeated during guide-design review, so caching the
// result avoids re-scanning a multi-million-guide shard for a query
// someone just ran. A nil *resultCache is valid and always misses.
type resultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newResultCache(addr string, ttl time.Duration) *resultCache {
	if addr == "" {
		return nil
	}
	return &resultCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// cacheKey hashes (shard, query) with xxhash rather than concatenating
// strings directly, so keys stay a fixed, short width regardless of
// query length.
func cacheKey(shard, query string) string {
	h := xxhash.New()
	h.WriteString(shard)
	h.WriteString("\x00")
	h.WriteString(query)
	return fmt.Sprintf("guide-index:offtargets:%x", h.Sum64())
}

func (c *resultCache) get(ctx context.Context, shard, query string) (offTargetResponse, bool) {
	if c == nil {
		return offTargetResponse{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(shard, query)).Bytes()
	if err != nil {
		return offTargetResponse{}, false
	}
	var resp offTargetResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return offTargetResponse{}, false
	}
	return resp, true
}

func (c *resultCache) set(ctx context.Context, shard, query string, resp offTargetResponse) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(shard, query), raw, c.ttl)
}

// Package cache implements the read-through, write-invalidated Redis cache in
// front of the listing pipeline.
//
// Every cached key belongs to a namespace and is recorded in that
// namespace's invalidation index (a Redis set named "<namespace>:keys").
// Any job mutation drops every key in the index and then the index itself.
//
// The cache is best-effort and never authoritative: Redis and decoding
// errors are logged and reported as a miss or a no-op, never returned.
//
// Known staleness window: a read that missed before an invalidation may
// write its (now stale) result after the invalidation ran. The entry lives
// at most one TTL.
package cache

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jobmate/jobs-service/internal/logging"
)

// Namespace groups keys that are invalidated together.
type Namespace string

const (
	Jobs        Namespace = "jobs"
	RelatedJobs Namespace = "related-jobs"
)

// AllNamespaces lists every namespace derived from the job collection.
var AllNamespaces = []Namespace{Jobs, RelatedJobs}

// delBatch bounds the number of keys sent in a single DEL.
const delBatch = 500

// IndexKey is the Redis set tracking the namespace's live keys.
func (n Namespace) IndexKey() string {
	return string(n) + ":keys"
}

// Key canonicalizes params into a cache key: parameter names sorted,
// rendered as name:value (multiple values joined with ","), pairs joined
// with "|", prefixed by the namespace.
//
//	Key(Jobs, {page:[2], city:[Berlin]}) == "jobs:city:Berlin|page:2"
func Key(ns Namespace, params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+":"+strings.Join(params[name], ","))
	}
	return string(ns) + ":" + strings.Join(pairs, "|")
}

// IDKey is the key for a computation derived from a single job.
func IDKey(ns Namespace, id string) string {
	return string(ns) + ":" + id
}

// Cache is a JSON value cache over Redis.
type Cache struct {
	rdb redis.Cmdable
	log *logging.Logger
}

// New returns a Cache backed by rdb.
func New(rdb redis.Cmdable, log *logging.Logger) *Cache {
	return &Cache{rdb: rdb, log: log.With("component", "cache")}
}

// Get decodes the value at key into dst. It returns false on a miss and on
// any Redis or decode error.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.log.Debug("cache miss", "key", key)
		return false
	}
	if err != nil {
		c.log.Error("redis get failed", "key", key, "err", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Error("cached payload undecodable", "key", key, "err", err)
		return false
	}
	c.log.Debug("cache hit", "key", key)
	return true
}

// Set stores v at key with ttl and tracks key in the namespace index.
func (c *Cache) Set(ctx context.Context, ns Namespace, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.log.Error("cache payload unencodable", "key", key, "err", err)
		return
	}
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, ttl)
		pipe.SAdd(ctx, ns.IndexKey(), key)
		return nil
	})
	if err != nil {
		c.log.Error("redis set failed", "key", key, "err", err)
		return
	}
	c.log.Debug("cache set", "key", key, "ttl", ttl)
}

// Index returns the invalidation index of ns.
func (c *Cache) Index(ns Namespace) *Index {
	return &Index{rdb: c.rdb, key: ns.IndexKey()}
}

// InvalidateAll drops every tracked key of the given namespaces, or of all
// namespaces when none are given.
func (c *Cache) InvalidateAll(ctx context.Context, namespaces ...Namespace) {
	if len(namespaces) == 0 {
		namespaces = AllNamespaces
	}
	for _, ns := range namespaces {
		n, err := c.Index(ns).InvalidateAll(ctx)
		if err != nil {
			c.log.Error("cache invalidation failed", "namespace", string(ns), "err", err)
			continue
		}
		if n > 0 {
			c.log.Debug("cache invalidated", "namespace", string(ns), "keys", n)
		}
	}
}

// Index is the set of live keys of one namespace.
type Index struct {
	rdb redis.Cmdable
	key string
}

// Track records key in the index.
func (i *Index) Track(ctx context.Context, key string) error {
	return i.rdb.SAdd(ctx, i.key, key).Err()
}

// Keys returns the tracked keys in no particular order.
func (i *Index) Keys(ctx context.Context) ([]string, error) {
	return i.rdb.SMembers(ctx, i.key).Result()
}

// InvalidateAll deletes every tracked key, then the index. It returns the
// number of tracked keys.
func (i *Index) InvalidateAll(ctx context.Context) (int, error) {
	keys, err := i.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		if err := i.rdb.Del(ctx, keys[start:end]...).Err(); err != nil {
			return 0, err
		}
	}
	if err := i.rdb.Del(ctx, i.key).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

package cache_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobs-service/internal/cache"
	"jobmate/jobs-service/internal/logging"
)

type payload struct {
	Jobs      []string `json:"jobs"`
	TotalJobs int64    `json:"totalJobs"`
}

func setup(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.New(rdb, logging.Nop()), mr
}

func TestKey_DeterministicAcrossPermutations(t *testing.T) {
	perms := [][]string{
		{"city", "jobType", "page", "limit"},
		{"limit", "page", "jobType", "city"},
		{"page", "city", "limit", "jobType"},
	}
	values := map[string]string{"city": "Berlin", "jobType": "remote", "page": "1", "limit": "2"}

	var keys []string
	for _, order := range perms {
		params := url.Values{}
		for _, name := range order {
			params.Add(name, values[name])
		}
		keys = append(keys, cache.Key(cache.Jobs, params))
	}

	for _, k := range keys {
		assert.Equal(t, "jobs:city:Berlin|jobType:remote|limit:2|page:1", k)
	}
}

func TestKey_MultiValueAndEmpty(t *testing.T) {
	assert.Equal(t, "jobs:skills:go,rust", cache.Key(cache.Jobs, url.Values{"skills": {"go", "rust"}}))
	assert.Equal(t, "jobs:", cache.Key(cache.Jobs, url.Values{}))
	assert.Equal(t, "related-jobs:abc", cache.IDKey(cache.RelatedJobs, "abc"))
}

func TestSetGet_RoundTripAndTracks(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	c.Set(ctx, cache.Jobs, "jobs:city:Berlin", payload{Jobs: []string{"a"}, TotalJobs: 1}, time.Minute)

	var got payload
	require.True(t, c.Get(ctx, "jobs:city:Berlin", &got))
	assert.Equal(t, int64(1), got.TotalJobs)

	members, err := mr.SMembers("jobs:keys")
	require.NoError(t, err)
	assert.Equal(t, []string{"jobs:city:Berlin"}, members)
	assert.Equal(t, time.Minute, mr.TTL("jobs:city:Berlin"))
}

func TestGet_ExpiredIsMiss(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	c.Set(ctx, cache.Jobs, "k", payload{}, 60*time.Second)
	mr.FastForward(61 * time.Second)

	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestGet_CorruptPayloadIsMiss(t *testing.T) {
	c, mr := setup(t)
	require.NoError(t, mr.Set("jobs:bad", "{not json"))

	var got payload
	assert.False(t, c.Get(context.Background(), "jobs:bad", &got))
}

func TestCache_RedisDownIsMissAndNoop(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.New(rdb, logging.Nop())
	ctx := context.Background()
	mr.Close()

	assert.NotPanics(t, func() {
		c.Set(ctx, cache.Jobs, "k", payload{}, time.Minute)
		c.InvalidateAll(ctx)
	})
	var got payload
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestInvalidateAll_DropsEveryTrackedKey(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	c.Set(ctx, cache.Jobs, "jobs:a", payload{}, time.Minute)
	c.Set(ctx, cache.Jobs, "jobs:b", payload{}, time.Minute)
	c.Set(ctx, cache.RelatedJobs, "related-jobs:x", payload{}, time.Minute)
	require.NoError(t, mr.Set("unrelated", "keep"))

	c.InvalidateAll(ctx)

	assert.False(t, mr.Exists("jobs:a"))
	assert.False(t, mr.Exists("jobs:b"))
	assert.False(t, mr.Exists("jobs:keys"))
	assert.False(t, mr.Exists("related-jobs:x"))
	assert.False(t, mr.Exists("related-jobs:keys"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestInvalidateAll_SingleNamespace(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	c.Set(ctx, cache.Jobs, "jobs:a", payload{}, time.Minute)
	c.Set(ctx, cache.RelatedJobs, "related-jobs:x", payload{}, time.Minute)

	c.InvalidateAll(ctx, cache.Jobs)

	assert.False(t, mr.Exists("jobs:a"))
	assert.True(t, mr.Exists("related-jobs:x"))
}

func TestIndex_TrackAndInvalidateCount(t *testing.T) {
	c, _ := setup(t)
	ctx := context.Background()
	idx := c.Index(cache.Jobs)

	require.NoError(t, idx.Track(ctx, "jobs:one"))
	require.NoError(t, idx.Track(ctx, "jobs:two"))
	require.NoError(t, idx.Track(ctx, "jobs:one"))

	n, err := idx.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := idx.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIndex_LostIndexIsRecoverable(t *testing.T) {
	c, mr := setup(t)
	ctx := context.Background()

	c.Set(ctx, cache.Jobs, "jobs:a", payload{TotalJobs: 3}, time.Minute)
	mr.Del("jobs:keys")

	n, err := c.Index(cache.Jobs).InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	// The orphan entry still expires on its own TTL.
	assert.Equal(t, time.Minute, mr.TTL("jobs:a"))
}

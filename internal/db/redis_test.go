package db_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/jobs-service/internal/db"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := db.NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := db.NewRedisClient(context.Background(), "not a url")
	assert.ErrorContains(t, err, "redis.ParseURL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = db.NewRedisClient(context.Background(), "redis://"+addr+"/0")
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestNewLazyRedisClient_ServerDown(t *testing.T) {
	_, err := db.NewLazyRedisClient("not a url")
	assert.ErrorContains(t, err, "redis.ParseURL")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := db.NewLazyRedisClient("redis://" + addr + "/0")
	require.NoError(t, err)
	defer client.Close()
	assert.Error(t, client.Ping(context.Background()).Err())
}

func TestNewPostgresPool_BadURL(t *testing.T) {
	_, err := db.NewPostgresPool(context.Background(), "://nope")
	assert.ErrorContains(t, err, "pgxpool.ParseConfig")
}

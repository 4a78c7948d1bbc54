package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilGenerationsIsDisabled(t *testing.T) {
	g := NewGenerations(nil, "x", nil)
	assert.Nil(t, g)

	n, err := g.Current(context.Background(), "currencies")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, g.Invalidate(context.Background(), "currencies"))
	assert.Equal(t, "cache:gen:currencies", g.Key("currencies"))
}

func TestGenerationKey(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()
	g := NewGenerations(rdb, "admin", nil)
	assert.Equal(t, "admin:gen:events", g.Key("events"))
	assert.Equal(t, "cache:gen:events", NewGenerations(rdb, "", nil).Key("events"))
}

func TestInvalidateSurfacesRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	g := NewGenerations(rdb, "admin", nil)

	err := g.Invalidate(context.Background(), "events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidate events")

	_, err = g.Current(context.Background(), "events")
	assert.Error(t, err)
}

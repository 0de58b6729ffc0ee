package slugcache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// fakeRedis keeps values in a map and records the TTL of the last Set.
type fakeRedis struct {
	values  map[string][]byte
	lastTTL time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string][]byte)}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	v, ok := f.values[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(string(v))
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	f.values[key] = value.([]byte)
	f.lastTTL = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestKey(t *testing.T) {
	tests := []struct {
		destination string
		maxPages    int
		expected    string
	}{
		{"croatia", 0, "slugs:croatia"},
		{"croatia", 3, "slugs:croatia_mp3"},
		{"", 0, "slugs:all"},
		{"", 5, "slugs:all_mp5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Key(tt.destination, tt.maxPages))
	}
}

func TestCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := New(fake, time.Hour, slog.Default())

	slugs := []string{"bavaria-46-cruiser-2019", "lagoon-42-2021"}
	cache.Save(ctx, "croatia", 0, slugs)

	assert.Equal(t, time.Hour, fake.lastTTL)
	assert.Equal(t, slugs, cache.Load(ctx, "croatia", 0))
}

func TestCache_MissReturnsNil(t *testing.T) {
	cache := New(newFakeRedis(), time.Hour, slog.Default())
	assert.Nil(t, cache.Load(context.Background(), "croatia", 0))
}

func TestCache_ScopesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	cache := New(newFakeRedis(), time.Hour, slog.Default())

	cache.Save(ctx, "croatia", 0, []string{"full-walk"})
	cache.Save(ctx, "croatia", 2, []string{"partial-walk"})

	assert.Equal(t, []string{"full-walk"}, cache.Load(ctx, "croatia", 0))
	assert.Equal(t, []string{"partial-walk"}, cache.Load(ctx, "croatia", 2))
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := New(fake, time.Hour, slog.Default())

	cache.Save(ctx, "greece", 0, []string{"a"})
	cache.Invalidate(ctx, "greece", 0)

	assert.Nil(t, cache.Load(ctx, "greece", 0))
}

func TestCache_CorruptEntryIgnored(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.values[Key("croatia", 0)] = []byte("{not json")

	cache := New(fake, time.Hour, slog.Default())
	assert.Nil(t, cache.Load(ctx, "croatia", 0))
}

func TestCache_DefaultTTL(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	cache := New(fake, 0, slog.Default())

	cache.Save(ctx, "croatia", 0, []string{"a"})
	assert.Equal(t, 6*time.Hour, fake.lastTTL)
}

package kv

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"tracker-guard/agent/internal/db"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStore(t *testing.T) *SQL {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return NewSQL(gdb)
}

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "tg:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func stores(t *testing.T) map[string]Store {
	rs, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemory(),
		"sql":    newSQLStore(t),
		"redis":  rs,
	}
}

func TestStore_GetOmitsAbsentKeys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, map[string]any{"a": 1}))

			got, err := s.Get(ctx, "a", "missing")
			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.JSONEq(t, "1", string(got["a"]))
		})
	}
}

func TestStore_SetMerges(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, map[string]any{"enabled": true, "total": 5}))
			require.NoError(t, s.Set(ctx, map[string]any{"total": 9}))

			got, err := s.Get(ctx, "enabled", "total")
			require.NoError(t, err)

			var enabled bool
			var total int
			ok, err := Decode(got, "enabled", &enabled)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, enabled, "unspecified keys are left untouched")

			_, err = Decode(got, "total", &total)
			require.NoError(t, err)
			assert.Equal(t, 9, total)
		})
	}
}

func TestStore_StructuredValues(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			emails := []string{"a@example.com", "b@example.com"}
			require.NoError(t, s.Set(ctx, map[string]any{"emails": emails}))

			got, err := s.Get(ctx, "emails")
			require.NoError(t, err)
			var out []string
			_, err = Decode(got, "emails", &out)
			require.NoError(t, err)
			assert.Equal(t, emails, out)
		})
	}
}

func TestDecode_Missing(t *testing.T) {
	var v int
	ok, err := Decode(nil, "nope", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecode_Malformed(t *testing.T) {
	var v int
	ok, err := Decode(map[string]json.RawMessage{"x": json.RawMessage(`"str"`)}, "x", &v)
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, err := m.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(context.Background(), map[string]any{"a": 1}), ErrClosed)
}

func TestRedis_KeysLiveUnderPrefix(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, map[string]any{"blockingEnabled": false}))

	raw, err := mr.Get("tg:blockingEnabled")
	require.NoError(t, err)
	assert.Equal(t, "false", raw)

	require.NoError(t, mr.Set("blockingEnabled", "true"))
	got, err := s.Get(ctx, "blockingEnabled")
	require.NoError(t, err)
	assert.JSONEq(t, "false", string(got["blockingEnabled"]), "unprefixed keys belong to someone else")
}

func TestRedis_EmptyCalls(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, map[string]any{}))
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

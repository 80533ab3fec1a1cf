package premium

import (
	"context"
	"testing"
	"time"

	"tracker-guard/agent/internal/kv"
	"tracker-guard/agent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTrial(t *testing.T) (*Trial, *clock, state.TrialKeys) {
	t.Helper()
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	keys := state.ForTrial(kv.NewMemory())
	return NewTrial(keys, 7, WithNow(c.now)), c, keys
}

func TestTrial_StartsOnFirstLoad(t *testing.T) {
	ctx := context.Background()
	tr, c, keys := newTrial(t)

	rec, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsPremium)
	assert.Equal(t, c.t.AddDate(0, 0, 7).UnixMilli(), rec.EndDate.UnixMilli())

	stored, err := keys.Trial(ctx)
	require.NoError(t, err)
	assert.True(t, stored.IsPremium)

	days, err := tr.DaysRemaining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, days)
}

func TestTrial_ExpiresMidSession(t *testing.T) {
	ctx := context.Background()
	tr, c, keys := newTrial(t)
	_, err := tr.Load(ctx)
	require.NoError(t, err)

	c.t = c.t.AddDate(0, 0, 6).Add(time.Hour)
	ok, err := tr.IsPremium(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	days, _ := tr.DaysRemaining(ctx)
	assert.Equal(t, 1, days)

	c.t = c.t.AddDate(0, 0, 1)
	ok, err = tr.IsPremium(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	days, _ = tr.DaysRemaining(ctx)
	assert.Equal(t, 0, days)

	_, err = tr.Load(ctx)
	require.NoError(t, err)
	stored, _ := keys.Trial(ctx)
	assert.False(t, stored.IsPremium)
}

func TestTrial_SubscribeOutlivesTrial(t *testing.T) {
	ctx := context.Background()
	tr, c, _ := newTrial(t)
	_, err := tr.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, tr.Subscribe(ctx))

	c.t = c.t.AddDate(1, 0, 0)
	ok, err := tr.IsPremium(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	rec, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, rec.IsPremium)
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  me@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got)

	for _, bad := range []string{"", "me", "me@example", "a b@c.d", "@x.io"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrInvalidEmail, bad)
	}
}

func TestSimulatedBreachChecker(t *testing.T) {
	c := NewSimulatedBreachChecker(42)
	hits := 0
	for i := 0; i < 1000; i++ {
		got, err := c.Check(context.Background(), "x@y.io")
		require.NoError(t, err)
		if len(got) > 0 {
			hits++
			assert.Contains(t, SimulatedBreaches, got[0])
		}
	}
	assert.InDelta(t, 300, hits, 80)
}

func TestSimulatedPermissions_Revoke(t *testing.T) {
	ctx := context.Background()
	p := NewSimulatedPermissions(1)
	for _, name := range PermissionNames {
		require.NoError(t, p.Revoke(ctx, "youtube.com", name))
	}
	cur, err := p.Current(ctx, "youtube.com")
	require.NoError(t, err)
	require.Len(t, cur, len(PermissionNames))
	for _, perm := range cur {
		assert.False(t, perm.Granted, perm.Name)
	}
	sites, err := p.Sites(ctx)
	require.NoError(t, err)
	for _, s := range sites {
		if s.Domain == "youtube.com" {
			assert.Empty(t, s.Permissions)
		}
	}
}

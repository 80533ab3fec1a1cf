package popup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/cookies"
	"tracker-guard/agent/internal/kv"
	"tracker-guard/agent/internal/premium"
	"tracker-guard/agent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJar struct {
	mu      sync.Mutex
	cookies []cookies.Cookie
	removes atomic.Int32
	failOn  string
}

func (j *fakeJar) GetAll(_ context.Context, domain string) ([]cookies.Cookie, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]cookies.Cookie(nil), j.cookies...), nil
}

func (j *fakeJar) Remove(_ context.Context, _ string, name string) error {
	j.removes.Add(1)
	// Stagger completions so they finish out of order.
	time.Sleep(time.Duration(len(name)) * time.Millisecond)
	if name == j.failOn {
		return errors.New("host refused")
	}
	return nil
}

type harness struct {
	ctl   *Controller
	store kv.Store
	jar   *fakeJar
	now   time.Time
	fail  error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: kv.NewMemory(), jar: &fakeJar{}, now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	d := command.NewDispatcher()
	d.Register(command.ActionToggleBlocking, command.HandlerFunc(func(ctx context.Context, _ command.Envelope) (any, error) {
		if h.fail != nil {
			return nil, h.fail
		}
		acc := state.New(h.store)
		enabled, _, err := acc.Enabled(ctx)
		if err != nil {
			return nil, err
		}
		if err := acc.SetEnabled(ctx, !enabled); err != nil {
			return nil, err
		}
		return command.BlockingStatus{BlockingEnabled: !enabled}, nil
	}))
	trial := premium.NewTrial(state.ForTrial(h.store), 7, premium.WithNow(func() time.Time { return h.now }))
	h.ctl = New(state.ForPopup(h.store), d,
		WithCookies(h.jar),
		WithPremium(trial, fixedBreaches{"Adobe (2013)"}, premium.NewSimulatedPermissions(3)),
		WithFreeEmailLimit(1),
	)
	return h
}

type fixedBreaches []string

func (f fixedBreaches) Check(context.Context, string) ([]string, error) { return f, nil }

func TestGrade(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 2: "B", 3: "C", 5: "C", 6: "D", 10: "D", 11: "F", 40: "F"}
	for n, want := range cases {
		assert.Equal(t, want, Grade(n), n)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	acc := state.New(h.store)
	require.NoError(t, acc.CountersAndDomain(ctx, state.Counters{Daily: 4, Total: 9}, "example.com", 3))

	v, err := h.ctl.Load(ctx, "https://example.com/path?q=1")
	require.NoError(t, err)
	assert.True(t, v.Enabled)
	assert.Equal(t, uint64(4), v.Daily)
	assert.Equal(t, "example.com", v.Domain)
	assert.Equal(t, 3, v.Trackers)
	assert.Equal(t, "C", v.Grade)
	assert.True(t, v.Premium)
	assert.Equal(t, 7, v.DaysLeft)

	v, err = h.ctl.Load(ctx, "chrome://newtab")
	require.NoError(t, err)
	assert.Zero(t, v.Trackers)
	assert.Equal(t, "A", v.Grade)

	v, err = h.ctl.Load(ctx, "::not a url")
	require.NoError(t, err)
	assert.Equal(t, "A", v.Grade)
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	enabled, err := h.ctl.Toggle(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
	enabled, err = h.ctl.Toggle(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	h.fail = errors.New("rule update rejected")
	enabled, err = h.ctl.Toggle(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, command.ErrRemote)
	assert.True(t, enabled)
}

func TestClearCookies_Five(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a", "bbbbb", "cc", "dddd", "eee"} {
		h.jar.cookies = append(h.jar.cookies, cookies.Cookie{Domain: ".example.com", Path: "/", Name: name})
	}
	h.jar.failOn = "cc"

	msg := h.ctl.ClearCookies(context.Background(), "https://example.com/")
	assert.Equal(t, "5 cookies cleared!", msg)
	assert.Equal(t, int32(5), h.jar.removes.Load())
}

func TestClearCookies_None(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, MsgNoCookies, h.ctl.ClearCookies(context.Background(), "https://example.com/"))
	assert.Zero(t, h.jar.removes.Load())
}

func TestClearCookies_BadURL(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, MsgCannotClear, h.ctl.ClearCookies(context.Background(), "about:blank"))
	assert.Zero(t, h.jar.removes.Load())
}

func TestEmails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.ctl.Load(ctx, "")
	require.NoError(t, err)

	_, err = h.ctl.AddEmail(ctx, "nope")
	assert.ErrorIs(t, err, premium.ErrInvalidEmail)

	found, err := h.ctl.AddEmail(ctx, " me@example.com ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Adobe (2013)"}, found)

	_, err = h.ctl.AddEmail(ctx, "me@example.com")
	assert.ErrorIs(t, err, premium.ErrAlreadyMonitored)

	// Trial still running: second address allowed.
	_, err = h.ctl.AddEmail(ctx, "two@example.com")
	require.NoError(t, err)

	// After expiry the free limit applies.
	h.now = h.now.AddDate(0, 0, 8)
	_, err = h.ctl.AddEmail(ctx, "three@example.com")
	assert.ErrorIs(t, err, premium.ErrUpgradeRequired)

	require.NoError(t, h.ctl.RemoveEmail(ctx, "me@example.com"))
	emails, err := h.ctl.Emails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"two@example.com"}, emails)
}

func TestPermissions_PremiumGate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.ctl.Load(ctx, "")
	require.NoError(t, err)

	perms, err := h.ctl.Permissions(ctx, "https://youtube.com/watch")
	require.NoError(t, err)
	assert.Len(t, perms, len(premium.PermissionNames))

	h.now = h.now.AddDate(0, 1, 0)
	_, err = h.ctl.Permissions(ctx, "https://youtube.com/watch")
	assert.ErrorIs(t, err, premium.ErrUpgradeRequired)

	require.NoError(t, h.ctl.Subscribe(ctx))
	sites, err := h.ctl.SitePermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 3)
	require.NoError(t, h.ctl.RevokePermission(ctx, "https://youtube.com/", "camera"))
}

// Package state is the typed view over the shared kv store. Every context
// gets an interface exposing only the keys it owns or may read, so lane
// violations fail to compile instead of racing at runtime.
package state

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"tracker-guard/agent/internal/kv"
)

const (
	KeyBlockingEnabled  = "blockingEnabled"
	KeyDailyBlocked     = "dailyBlockedCount"
	KeyTotalBlocked     = "totalBlocked"
	KeyInstalledAt      = "installedAt"
	KeyMonitoredEmails  = "monitoredEmails"
	KeyTrialEndDate     = "trialEndDate"
	KeyIsPremium        = "isPremium"
	KeySubscriptionDate = "subscriptionDate"

	trackerKeyPrefix = "trackers_"
)

// TrackerKey is the key of the per-domain tracker count.
func TrackerKey(host string) string { return trackerKeyPrefix + host }

// Hostname extracts the host part of a tab URL. Scheme, port and path are
// stripped.
func Hostname(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", raw)
	}
	return u.Hostname(), nil
}

// Counters is the persisted pair of blocked counters.
type Counters struct {
	Daily uint64
	Total uint64
}

// CoordinatorKeys is owned by the background coordinator: enabled flag,
// counters and per-domain tracker counts.
type CoordinatorKeys interface {
	Enabled(ctx context.Context) (enabled bool, present bool, err error)
	SetEnabled(ctx context.Context, enabled bool) error
	Counters(ctx context.Context) (Counters, error)
	SetCounters(ctx context.Context, c Counters) error
	ResetDaily(ctx context.Context) error
	SetDomainTrackers(ctx context.Context, host string, n int) error
	CountersAndDomain(ctx context.Context, c Counters, host string, n int) error
	InstalledAt(ctx context.Context) (time.Time, bool, error)
	Initialize(ctx context.Context, now time.Time) error
}

// ObserverKeys is the read-only lane of page observers.
type ObserverKeys interface {
	Enabled(ctx context.Context) (enabled bool, present bool, err error)
}

// PopupKeys reads protection state and owns the monitored email list.
type PopupKeys interface {
	Enabled(ctx context.Context) (enabled bool, present bool, err error)
	Counters(ctx context.Context) (Counters, error)
	DomainTrackers(ctx context.Context, host string) (int, error)
	MonitoredEmails(ctx context.Context) ([]string, error)
	SetMonitoredEmails(ctx context.Context, emails []string) error
}

// TrialKeys owns the trial and subscription record.
type TrialKeys interface {
	Trial(ctx context.Context) (Trial, error)
	SetTrial(ctx context.Context, t Trial) error
}

// Trial mirrors the persisted premium record. Zero times mean absent.
type Trial struct {
	EndDate          time.Time
	IsPremium        bool
	SubscriptionDate time.Time
}

// Accessor implements every lane over a kv.Store. Callers should hold it
// through the narrow interface returned by the For* constructors.
type Accessor struct {
	store kv.Store
}

func New(store kv.Store) *Accessor { return &Accessor{store: store} }

func ForCoordinator(store kv.Store) CoordinatorKeys { return New(store) }
func ForObserver(store kv.Store) ObserverKeys       { return New(store) }
func ForPopup(store kv.Store) PopupKeys             { return New(store) }
func ForTrial(store kv.Store) TrialKeys             { return New(store) }

func (a *Accessor) Enabled(ctx context.Context) (bool, bool, error) {
	got, err := a.store.Get(ctx, KeyBlockingEnabled)
	if err != nil {
		return true, false, err
	}
	enabled := true
	ok, err := kv.Decode(got, KeyBlockingEnabled, &enabled)
	if err != nil {
		return true, ok, err
	}
	return enabled, ok, nil
}

func (a *Accessor) SetEnabled(ctx context.Context, enabled bool) error {
	return a.store.Set(ctx, map[string]any{KeyBlockingEnabled: enabled})
}

func (a *Accessor) Counters(ctx context.Context) (Counters, error) {
	got, err := a.store.Get(ctx, KeyDailyBlocked, KeyTotalBlocked)
	if err != nil {
		return Counters{}, err
	}
	var c Counters
	if _, err := kv.Decode(got, KeyDailyBlocked, &c.Daily); err != nil {
		return Counters{}, err
	}
	if _, err := kv.Decode(got, KeyTotalBlocked, &c.Total); err != nil {
		return Counters{}, err
	}
	return c, nil
}

func (a *Accessor) SetCounters(ctx context.Context, c Counters) error {
	return a.store.Set(ctx, map[string]any{KeyDailyBlocked: c.Daily, KeyTotalBlocked: c.Total})
}

// ResetDaily zeroes the daily counter only.
func (a *Accessor) ResetDaily(ctx context.Context) error {
	return a.store.Set(ctx, map[string]any{KeyDailyBlocked: 0})
}

func (a *Accessor) SetDomainTrackers(ctx context.Context, host string, n int) error {
	return a.store.Set(ctx, map[string]any{TrackerKey(host): n})
}

// CountersAndDomain writes both counters and one domain count in one Set.
func (a *Accessor) CountersAndDomain(ctx context.Context, c Counters, host string, n int) error {
	return a.store.Set(ctx, map[string]any{
		KeyDailyBlocked:  c.Daily,
		KeyTotalBlocked:  c.Total,
		TrackerKey(host): n,
	})
}

func (a *Accessor) DomainTrackers(ctx context.Context, host string) (int, error) {
	key := TrackerKey(host)
	got, err := a.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := kv.Decode(got, key, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (a *Accessor) InstalledAt(ctx context.Context) (time.Time, bool, error) {
	return a.timeKey(ctx, KeyInstalledAt)
}

// Initialize writes the first-install record.
func (a *Accessor) Initialize(ctx context.Context, now time.Time) error {
	return a.store.Set(ctx, map[string]any{
		KeyBlockingEnabled: true,
		KeyTotalBlocked:    0,
		KeyDailyBlocked:    0,
		KeyInstalledAt:     now.UnixMilli(),
	})
}

func (a *Accessor) MonitoredEmails(ctx context.Context) ([]string, error) {
	got, err := a.store.Get(ctx, KeyMonitoredEmails)
	if err != nil {
		return nil, err
	}
	var emails []string
	if _, err := kv.Decode(got, KeyMonitoredEmails, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (a *Accessor) SetMonitoredEmails(ctx context.Context, emails []string) error {
	if emails == nil {
		emails = []string{}
	}
	return a.store.Set(ctx, map[string]any{KeyMonitoredEmails: emails})
}

func (a *Accessor) Trial(ctx context.Context) (Trial, error) {
	got, err := a.store.Get(ctx, KeyTrialEndDate, KeyIsPremium, KeySubscriptionDate)
	if err != nil {
		return Trial{}, err
	}
	var t Trial
	var end, sub int64
	if ok, err := kv.Decode(got, KeyTrialEndDate, &end); err != nil {
		return Trial{}, err
	} else if ok && end > 0 {
		t.EndDate = time.UnixMilli(end)
	}
	if ok, err := kv.Decode(got, KeySubscriptionDate, &sub); err != nil {
		return Trial{}, err
	} else if ok && sub > 0 {
		t.SubscriptionDate = time.UnixMilli(sub)
	}
	if _, err := kv.Decode(got, KeyIsPremium, &t.IsPremium); err != nil {
		return Trial{}, err
	}
	return t, nil
}

func (a *Accessor) SetTrial(ctx context.Context, t Trial) error {
	values := map[string]any{KeyIsPremium: t.IsPremium}
	if !t.EndDate.IsZero() {
		values[KeyTrialEndDate] = t.EndDate.UnixMilli()
	}
	if !t.SubscriptionDate.IsZero() {
		values[KeySubscriptionDate] = t.SubscriptionDate.UnixMilli()
	}
	return a.store.Set(ctx, values)
}

func (a *Accessor) timeKey(ctx context.Context, key string) (time.Time, bool, error) {
	got, err := a.store.Get(ctx, key)
	if err != nil {
		return time.Time{}, false, err
	}
	var ms int64
	ok, err := kv.Decode(got, key, &ms)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.UnixMilli(ms), true, nil
}

// Mirror is the process-wide in-memory copy of the enabled flag held by the
// background process. The store stays authoritative for other contexts.
type Mirror struct {
	enabled atomic.Bool
}

func NewMirror(enabled bool) *Mirror {
	m := &Mirror{}
	m.enabled.Store(enabled)
	return m
}

func (m *Mirror) Enabled() bool     { return m.enabled.Load() }
func (m *Mirror) SetEnabled(v bool) { m.enabled.Store(v) }

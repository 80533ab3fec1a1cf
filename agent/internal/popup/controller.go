// Package popup implements the user-facing controller opened on demand
// against the current tab.
package popup

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/cookies"
	"tracker-guard/agent/internal/logger"
	"tracker-guard/agent/internal/premium"
	"tracker-guard/agent/internal/state"
)

const (
	MsgNoCookies     = "No cookies to clear"
	MsgCannotClear   = "Cannot clear cookies for this page"
	defaultFreeEmail = 1
)

// View is what the popup renders for one tab.
type View struct {
	Enabled  bool
	Daily    uint64
	TabURL   string
	Domain   string
	Trackers int
	Grade    string
	Premium  bool
	DaysLeft int
}

// Grade maps a per-domain tracker count to a privacy letter.
func Grade(trackers int) string {
	switch {
	case trackers <= 0:
		return "A"
	case trackers <= 2:
		return "B"
	case trackers <= 5:
		return "C"
	case trackers <= 10:
		return "D"
	}
	return "F"
}

type Controller struct {
	keys      state.PopupKeys
	sender    command.Sender
	cookies   cookies.Store
	trial     *premium.Trial
	breaches  premium.BreachChecker
	perms     premium.PermissionReporter
	freeLimit int
}

type Option func(*Controller)

func WithCookies(s cookies.Store) Option { return func(c *Controller) { c.cookies = s } }

func WithPremium(t *premium.Trial, b premium.BreachChecker, p premium.PermissionReporter) Option {
	return func(c *Controller) {
		c.trial = t
		c.breaches = b
		c.perms = p
	}
}

// WithFreeEmailLimit sets how many addresses non-premium users may monitor.
func WithFreeEmailLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.freeLimit = n
		}
	}
}

func New(keys state.PopupKeys, sender command.Sender, opts ...Option) *Controller {
	c := &Controller{keys: keys, sender: sender, freeLimit: defaultFreeEmail}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load reads everything the popup shows for tabURL. An unparseable tab URL
// renders with zero trackers and grade A.
func (c *Controller) Load(ctx context.Context, tabURL string) (View, error) {
	v := View{TabURL: tabURL, Grade: "A"}
	enabled, _, err := c.keys.Enabled(ctx)
	if err != nil {
		return v, fmt.Errorf("read blocking flag: %w", err)
	}
	v.Enabled = enabled
	counters, err := c.keys.Counters(ctx)
	if err != nil {
		return v, fmt.Errorf("read counters: %w", err)
	}
	v.Daily = counters.Daily

	if host, err := state.Hostname(tabURL); err == nil {
		v.Domain = host
		n, err := c.keys.DomainTrackers(ctx, host)
		if err != nil {
			return v, fmt.Errorf("read trackers for %s: %w", host, err)
		}
		v.Trackers = n
		v.Grade = Grade(n)
	} else {
		logger.Debugf("Invalid URL, using defaults: %v", err)
	}

	if c.trial != nil {
		if _, err := c.trial.Load(ctx); err != nil {
			return v, err
		}
		if v.Premium, err = c.trial.IsPremium(ctx); err != nil {
			return v, err
		}
		if v.DaysLeft, err = c.trial.DaysRemaining(ctx); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Toggle asks the background to flip protection and returns the new flag.
// On failure the persisted flag is returned alongside the error so the
// caller can render what is actually stored.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	env, err := command.NewEnvelope(command.ActionToggleBlocking, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.sender.Send(ctx, env)
	if err == nil {
		var status command.BlockingStatus
		if status, err = command.Decode[command.BlockingStatus](resp); err == nil {
			return status.BlockingEnabled, nil
		}
	}
	logger.Errorf("Toggle protection failed: %v", err)
	enabled, rerr := c.Refresh(ctx)
	if rerr != nil {
		return false, fmt.Errorf("toggle: %w (refresh: %v)", err, rerr)
	}
	return enabled, fmt.Errorf("toggle: %w", err)
}

// Refresh re-reads the persisted flag.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	enabled, _, err := c.keys.Enabled(ctx)
	return enabled, err
}

// Stats asks the background for the persisted counters.
func (c *Controller) Stats(ctx context.Context) (command.Stats, error) {
	env, err := command.NewEnvelope(command.ActionGetStats, nil)
	if err != nil {
		return command.Stats{}, err
	}
	resp, err := c.sender.Send(ctx, env)
	if err != nil {
		return command.Stats{}, err
	}
	return command.Decode[command.Stats](resp)
}

// ClearCookies removes every cookie of the tab's domain, one removal per
// cookie in parallel. A failed removal still counts as cleared.
func (c *Controller) ClearCookies(ctx context.Context, tabURL string) string {
	host, err := state.Hostname(tabURL)
	if err != nil || c.cookies == nil {
		return MsgCannotClear
	}
	all, err := c.cookies.GetAll(ctx, host)
	if err != nil {
		logger.Errorf("Error getting cookies: %v", err)
		return MsgCannotClear
	}
	if len(all) == 0 {
		return MsgNoCookies
	}

	var cleared atomic.Int64
	var wg sync.WaitGroup
	for _, ck := range all {
		wg.Add(1)
		go func(ck cookies.Cookie) {
			defer wg.Done()
			if err := c.cookies.Remove(ctx, ck.URL(), ck.Name); err != nil {
				logger.Warnf("Remove cookie %s: %v", ck.Name, err)
			}
			cleared.Add(1)
		}(ck)
	}
	wg.Wait()
	return fmt.Sprintf("%d cookies cleared!", cleared.Load())
}

func (c *Controller) Emails(ctx context.Context) ([]string, error) {
	return c.keys.MonitoredEmails(ctx)
}

// AddEmail starts monitoring raw and returns any breaches found for it.
func (c *Controller) AddEmail(ctx context.Context, raw string) ([]string, error) {
	email, err := premium.NormalizeEmail(raw)
	if err != nil {
		return nil, err
	}
	emails, err := c.keys.MonitoredEmails(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(emails, email) {
		return nil, premium.ErrAlreadyMonitored
	}
	if len(emails) >= c.freeLimit {
		ok, err := c.isPremium(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, premium.ErrUpgradeRequired
		}
	}
	if err := c.keys.SetMonitoredEmails(ctx, append(emails, email)); err != nil {
		return nil, fmt.Errorf("save monitored emails: %w", err)
	}
	if c.breaches == nil {
		return nil, nil
	}
	found, err := c.breaches.Check(ctx, email)
	if err != nil {
		logger.Warnf("Breach check for %s failed: %v", email, err)
		return nil, nil
	}
	return found, nil
}

func (c *Controller) RemoveEmail(ctx context.Context, email string) error {
	emails, err := c.keys.MonitoredEmails(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(emails, func(e string) bool { return e == email })
	return c.keys.SetMonitoredEmails(ctx, kept)
}

// Permissions lists the tab site's permissions. Premium only.
func (c *Controller) Permissions(ctx context.Context, tabURL string) ([]premium.Permission, error) {
	if err := c.requirePremium(ctx); err != nil {
		return nil, err
	}
	host, err := state.Hostname(tabURL)
	if err != nil {
		return nil, err
	}
	return c.perms.Current(ctx, host)
}

func (c *Controller) SitePermissions(ctx context.Context) ([]premium.SitePermissions, error) {
	if err := c.requirePremium(ctx); err != nil {
		return nil, err
	}
	return c.perms.Sites(ctx)
}

func (c *Controller) RevokePermission(ctx context.Context, tabURL, permission string) error {
	if err := c.requirePremium(ctx); err != nil {
		return err
	}
	host, err := state.Hostname(tabURL)
	if err != nil {
		return err
	}
	return c.perms.Revoke(ctx, host, permission)
}

func (c *Controller) Subscribe(ctx context.Context) error {
	if c.trial == nil {
		return premium.ErrUpgradeRequired
	}
	return c.trial.Subscribe(ctx)
}

func (c *Controller) requirePremium(ctx context.Context) error {
	if c.perms == nil {
		return premium.ErrUpgradeRequired
	}
	ok, err := c.isPremium(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return premium.ErrUpgradeRequired
	}
	return nil
}

func (c *Controller) isPremium(ctx context.Context) (bool, error) {
	if c.trial == nil {
		return false, nil
	}
	return c.trial.IsPremium(ctx)
}

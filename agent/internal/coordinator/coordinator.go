package coordinator

import (
	"context"
	"errors"
	"fmt"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/indicator"
	"tracker-guard/agent/internal/logger"
	"tracker-guard/agent/internal/state"
)

// ErrStopped is returned when a job is submitted after Run has returned.
var ErrStopped = errors.New("coordinator stopped")

// RuleInstaller is the part of the rule manager the coordinator drives.
type RuleInstaller interface {
	Install(ctx context.Context, enabled bool) error
}

type job struct {
	fn    func(ctx context.Context) error
	reply chan error
}

type Coordinator struct {
	keys   state.CoordinatorKeys
	rules  RuleInstaller
	ind    indicator.Indicator
	mirror *state.Mirror
	clock  Clock

	jobs chan job
	done chan struct{}
}

type Option func(*Coordinator)

func WithClock(c Clock) Option { return func(co *Coordinator) { co.clock = c } }

func New(keys state.CoordinatorKeys, rules RuleInstaller, ind indicator.Indicator, opts ...Option) *Coordinator {
	c := &Coordinator{
		keys:   keys,
		rules:  rules,
		ind:    ind,
		mirror: state.NewMirror(true),
		clock:  SystemClock,
		jobs:   make(chan job),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes submitted jobs one at a time until ctx is cancelled.
// It must be called from exactly one goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)
	logger.Info("coordinator started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("coordinator stopped")
			return ctx.Err()
		case j := <-c.jobs:
			j.reply <- j.fn(ctx)
		}
	}
}

func (c *Coordinator) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{fn: fn, reply: make(chan error, 1)}
	select {
	case c.jobs <- j:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnInstalled handles the install (or upgrade) lifecycle event. The first
// install writes the initial record; an upgrade keeps existing counters.
func (c *Coordinator) OnInstalled(ctx context.Context) error {
	return c.submit(ctx, func(ctx context.Context) error {
		_, installed, err := c.keys.InstalledAt(ctx)
		if err != nil {
			return fmt.Errorf("read install record: %w", err)
		}
		enabled := true
		if !installed {
			if err := c.keys.Initialize(ctx, c.clock.Now()); err != nil {
				return fmt.Errorf("initialize state: %w", err)
			}
			logger.Info("first install, protection enabled")
		} else if enabled, _, err = c.keys.Enabled(ctx); err != nil {
			logger.Warnf("Read enabled flag failed, assuming enabled: %v", err)
			enabled = true
		}
		c.mirror.SetEnabled(enabled)
		c.ind.Show(indicator.For(enabled))
		return c.rules.Install(ctx, enabled)
	})
}

// OnStartup restores the persisted flag after a process restart and
// re-asserts the rule set, since the host may not have retained it.
func (c *Coordinator) OnStartup(ctx context.Context) error {
	return c.submit(ctx, func(ctx context.Context) error {
		enabled, _, err := c.keys.Enabled(ctx)
		if err != nil {
			logger.Warnf("Read enabled flag failed, assuming enabled: %v", err)
			enabled = true
		}
		c.mirror.SetEnabled(enabled)
		c.ind.Show(indicator.For(enabled))
		return c.rules.Install(ctx, enabled)
	})
}

// Toggle flips protection and returns the resulting flag. A failed write
// leaves everything unchanged. A rule install failure is returned but the
// flag is not rolled back; the next startup re-asserts.
func (c *Coordinator) Toggle(ctx context.Context) (bool, error) {
	var enabled bool
	err := c.submit(ctx, func(ctx context.Context) error {
		next := !c.mirror.Enabled()
		if err := c.keys.SetEnabled(ctx, next); err != nil {
			enabled = !next
			return fmt.Errorf("persist enabled flag: %w", err)
		}
		enabled = next
		c.mirror.SetEnabled(enabled)
		c.ind.Show(indicator.For(enabled))
		if err := c.rules.Install(ctx, enabled); err != nil {
			return err
		}
		logger.Infof("Protection toggled, enabled=%v", enabled)
		return nil
	})
	return enabled, err
}

// Installed reports whether an install time has been recorded.
func (c *Coordinator) Installed(ctx context.Context) (bool, error) {
	_, installed, err := c.keys.InstalledAt(ctx)
	if err != nil {
		return false, fmt.Errorf("read install time: %w", err)
	}
	return installed, nil
}

// Status is the in-memory protection flag.
func (c *Coordinator) Status() bool { return c.mirror.Enabled() }

// Ingest adds a page report to the counters. Reports without blocked
// trackers or without an originating tab are ignored.
func (c *Coordinator) Ingest(ctx context.Context, report *command.PageAnalysis, tabURL string) error {
	if report == nil || tabURL == "" || report.BlockedCount <= 0 {
		return nil
	}
	host, err := state.Hostname(tabURL)
	if err != nil {
		logger.Warnf("Dropping page report with bad url %q: %v", tabURL, err)
		return nil
	}
	n := uint64(report.BlockedCount)
	return c.submit(ctx, func(ctx context.Context) error {
		cur, err := c.keys.Counters(ctx)
		if err != nil {
			return fmt.Errorf("read counters: %w", err)
		}
		next := state.Counters{Daily: cur.Daily + n, Total: cur.Total + n}
		if err := c.keys.CountersAndDomain(ctx, next, host, len(report.Trackers)); err != nil {
			return fmt.Errorf("write counters: %w", err)
		}
		logger.Debugf("Page analysis for %s: blocked=%d trackers=%d", host, n, len(report.Trackers))
		return nil
	})
}

// Stats reads the persisted counters.
func (c *Coordinator) Stats(ctx context.Context) (command.Stats, error) {
	cur, err := c.keys.Counters(ctx)
	if err != nil {
		return command.Stats{}, err
	}
	return command.Stats{DailyBlocked: cur.Daily, TotalBlocked: cur.Total}, nil
}

// ResetDaily zeroes the daily counter; the total is untouched.
func (c *Coordinator) ResetDaily(ctx context.Context) error {
	return c.submit(ctx, func(ctx context.Context) error {
		if err := c.keys.ResetDaily(ctx); err != nil {
			return fmt.Errorf("reset daily counter: %w", err)
		}
		logger.Info("daily blocked counter reset")
		return nil
	})
}

// RunDailyReset resets the daily counter at every local midnight until ctx
// is cancelled. Midnights missed while the process was down are not
// caught up.
func (c *Coordinator) RunDailyReset(ctx context.Context) {
	for {
		now := c.clock.Now()
		wait := NextMidnight(now).Sub(now)
		logger.Debugf("Next daily reset in %v", wait)
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(wait):
		}
		if err := c.ResetDaily(ctx); err != nil && ctx.Err() == nil {
			logger.Errorf("Daily reset failed: %v", err)
		}
	}
}

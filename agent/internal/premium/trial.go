// Package premium tracks the trial window and the features it unlocks.
package premium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"tracker-guard/agent/internal/logger"
	"tracker-guard/agent/internal/state"
)

const DefaultTrialDays = 7

var ErrUpgradeRequired = errors.New("upgrade to Pro to unlock this feature")

// Trial reads and updates the trial record. Premium status is derived from
// the clock on every call, so a trial can expire while the agent runs.
type Trial struct {
	keys state.TrialKeys
	days int
	now  func() time.Time
}

type Option func(*Trial)

func WithNow(now func() time.Time) Option { return func(t *Trial) { t.now = now } }

func NewTrial(keys state.TrialKeys, days int, opts ...Option) *Trial {
	if days <= 0 {
		days = DefaultTrialDays
	}
	t := &Trial{keys: keys, days: days, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Load starts the trial on first use and persists an expired status.
func (t *Trial) Load(ctx context.Context) (state.Trial, error) {
	rec, err := t.keys.Trial(ctx)
	if err != nil {
		return state.Trial{}, fmt.Errorf("load trial: %w", err)
	}
	now := t.now()
	if rec.EndDate.IsZero() {
		rec.EndDate = now.AddDate(0, 0, t.days)
		rec.IsPremium = true
		if err := t.keys.SetTrial(ctx, rec); err != nil {
			return state.Trial{}, fmt.Errorf("start trial: %w", err)
		}
		logger.Infof("Trial started, ends %s", rec.EndDate.Format(time.RFC3339))
		return rec, nil
	}
	if rec.IsPremium && !t.active(rec, now) {
		rec.IsPremium = false
		if err := t.keys.SetTrial(ctx, rec); err != nil {
			return state.Trial{}, fmt.Errorf("expire trial: %w", err)
		}
		logger.Info("Trial expired")
	}
	return rec, nil
}

func (t *Trial) active(rec state.Trial, now time.Time) bool {
	if !rec.SubscriptionDate.IsZero() {
		return true
	}
	return !rec.EndDate.IsZero() && !now.After(rec.EndDate)
}

func (t *Trial) IsPremium(ctx context.Context) (bool, error) {
	rec, err := t.keys.Trial(ctx)
	if err != nil {
		return false, err
	}
	return t.active(rec, t.now()), nil
}

// DaysRemaining rounds up to whole days and never goes below zero.
func (t *Trial) DaysRemaining(ctx context.Context) (int, error) {
	rec, err := t.keys.Trial(ctx)
	if err != nil {
		return 0, err
	}
	if rec.EndDate.IsZero() {
		return 0, nil
	}
	left := rec.EndDate.Sub(t.now()).Hours() / 24
	return int(math.Max(0, math.Ceil(left))), nil
}

func (t *Trial) Subscribe(ctx context.Context) error {
	rec, err := t.keys.Trial(ctx)
	if err != nil {
		return err
	}
	rec.IsPremium = true
	rec.SubscriptionDate = t.now()
	if err := t.keys.SetTrial(ctx, rec); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Info("Subscription activated")
	return nil
}

package observer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/firewall"
	"tracker-guard/agent/internal/logger"
	"tracker-guard/agent/internal/notify"
	"tracker-guard/agent/internal/state"

	"github.com/google/uuid"
)

const sendTimeout = 10 * time.Second

// Observer plays the page context: it analyzes pages while blocking is on,
// shows the banner and reports to the background.
type Observer struct {
	keys     state.ObserverKeys
	sender   command.Sender
	surface  notify.Surface
	trackers atomic.Pointer[[]string]

	mu     sync.Mutex
	banner *notify.Notice

	inflight sync.WaitGroup
}

func New(keys state.ObserverKeys, sender command.Sender, surface notify.Surface, trackers []string) *Observer {
	o := &Observer{keys: keys, sender: sender, surface: surface}
	o.SetTrackers(trackers)
	return o
}

// SetTrackers swaps the tracker list; empty restores the built-in list.
func (o *Observer) SetTrackers(trackers []string) {
	t := firewall.Trackers(trackers)
	o.trackers.Store(&t)
}

func (o *Observer) Trackers() []string { return *o.trackers.Load() }

// Observe handles one page load. ok is false when blocking is disabled and
// nothing was analyzed.
func (o *Observer) Observe(ctx context.Context, pageURL string, body io.Reader) (rep Report, ok bool, err error) {
	enabled, _, err := o.keys.Enabled(ctx)
	if err != nil {
		return Report{}, false, fmt.Errorf("read blocking flag: %w", err)
	}
	if !enabled {
		logger.Debugf("Blocking disabled, skipping %s", pageURL)
		return Report{}, false, nil
	}
	rep, err = Analyze(body, pageURL, o.Trackers())
	if err != nil {
		return Report{}, false, err
	}
	if rep.BlockedCount > 0 {
		o.showBanner(rep.BlockedCount)
	}
	o.report(rep)
	return rep, true, nil
}

// showBanner replaces any visible banner with a new one.
func (o *Observer) showBanner(n int) {
	if o.surface == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.banner != nil {
		o.banner.Dismiss()
	}
	o.banner = notify.Show(o.surface, "tracker-notif-"+uuid.NewString(), notify.Banner(n), notify.BannerDelay)
}

// DismissBanner removes the current banner, as a click on it would.
func (o *Observer) DismissBanner() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.banner != nil {
		o.banner.Dismiss()
		o.banner = nil
	}
}

func (o *Observer) report(rep Report) {
	if o.sender == nil {
		return
	}
	env, err := command.NewEnvelope(command.ActionPageAnalysis, rep.PageAnalysis)
	if err != nil {
		logger.Errorf("Encode page analysis: %v", err)
		return
	}
	env.URL = rep.URL
	env.Tab = &command.Tab{URL: rep.URL}
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		resp, err := o.sender.Send(ctx, env)
		if err != nil {
			logger.Errorf("Message error: %v", err)
			return
		}
		if resp.Error != "" {
			logger.Errorf("Page analysis rejected: %s", resp.Error)
		}
	}()
}

// Wait blocks until every report sent so far has been delivered or failed.
func (o *Observer) Wait() { o.inflight.Wait() }

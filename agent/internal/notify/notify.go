// Package notify shows short-lived notices on a host surface.
package notify

import (
	"fmt"
	"sync"
	"time"
)

const (
	BannerDelay   = 8 * time.Second
	FeedbackDelay = 2 * time.Second
)

// Surface is where notices are drawn.
type Surface interface {
	Add(id, text string)
	Remove(id string)
}

// Notice is displayed once and removed exactly once, either by its timer or
// by Dismiss, whichever comes first.
type Notice struct {
	id      string
	surface Surface
	once    sync.Once
	timer   *time.Timer
	done    chan struct{}
}

// Show adds text to s under id and schedules its removal after delay.
func Show(s Surface, id, text string, delay time.Duration) *Notice {
	n := &Notice{id: id, surface: s, done: make(chan struct{})}
	s.Add(id, text)
	n.timer = time.AfterFunc(delay, n.remove)
	return n
}

func (n *Notice) Dismiss() {
	n.timer.Stop()
	n.remove()
}

func (n *Notice) remove() {
	n.once.Do(func() {
		n.surface.Remove(n.id)
		close(n.done)
	})
}

// Done is closed once the notice has been removed.
func (n *Notice) Done() <-chan struct{} { return n.done }

// Banner returns the page banner text for n blocked trackers.
func Banner(n int) string { return fmt.Sprintf("Blocked: %d", n) }

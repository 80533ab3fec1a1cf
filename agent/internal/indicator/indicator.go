// Package indicator renders the protected/unprotected status on the host UI
// surface (badge text, badge color, icon set).
package indicator

import (
	"sync"

	"tracker-guard/agent/internal/logger"
)

type State struct {
	Text  string
	Color string
	Icons map[int]string
}

var (
	Protected = State{
		Text:  "ON",
		Color: "#4CAF50",
		Icons: map[int]string{16: "icons/icon16.png", 48: "icons/icon48.png", 128: "icons/icon128.png"},
	}
	Unprotected = State{
		Text:  "OFF",
		Color: "#f44336",
		Icons: map[int]string{16: "icons/icon16_disabled.png", 48: "icons/icon48_disabled.png", 128: "icons/icon128_disabled.png"},
	}
)

// For maps the enabled flag to its state.
func For(enabled bool) State {
	if enabled {
		return Protected
	}
	return Unprotected
}

type Indicator interface {
	Show(s State)
}

// Log writes every change to the agent log.
type Log struct{}

func (Log) Show(s State) {
	logger.L.Info().Str("badge", s.Text).Str("color", s.Color).Str("icon", s.Icons[16]).Msg("indicator updated")
}

// Recorder remembers the last state shown.
type Recorder struct {
	mu    sync.Mutex
	last  State
	shown int
}

func (r *Recorder) Show(s State) {
	r.mu.Lock()
	r.last = s
	r.shown++
	r.mu.Unlock()
}

func (r *Recorder) Last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

// Multi fans a state out to several indicators.
type Multi []Indicator

func (m Multi) Show(s State) {
	for _, i := range m {
		i.Show(s)
	}
}

package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tracker-guard/agent/internal/logger"
)

// Handler serves one action.
type Handler interface {
	Handle(ctx context.Context, env Envelope) (any, error)
}

type HandlerFunc func(ctx context.Context, env Envelope) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, env Envelope) (any, error) { return f(ctx, env) }

// Sender delivers a message to the background context and waits for its
// response. Transport failures are returned as errors; handler failures
// come back in Response.Error.
type Sender interface {
	Send(ctx context.Context, env Envelope) (Response, error)
}

// Dispatcher routes envelopes to registered handlers in-process.
type Dispatcher struct {
	mu       sync.RWMutex
	registry map[string]Handler
}

func NewDispatcher() *Dispatcher { return &Dispatcher{registry: map[string]Handler{}} }

func (d *Dispatcher) Register(action string, h Handler) {
	d.mu.Lock()
	d.registry[action] = h
	d.mu.Unlock()
}

func (d *Dispatcher) Get(action string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.registry[action]
	return h, ok
}

// Format renders a human-friendly string of the envelope.
func Format(env Envelope) string {
	tab := ""
	if env.Tab != nil {
		tab = env.Tab.URL
	}
	return fmt.Sprintf("action=%s id=%s tab=%s", env.Action, env.ID, tab)
}

// Dispatch runs the handler for env and never panics; a failing handler
// produces a response carrying the error text.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) (resp Response) {
	resp.ID = env.ID
	h, ok := d.Get(env.Action)
	if !ok {
		logger.Errorf("Unknown action: %s", env.Action)
		resp.Error = fmt.Sprintf("unknown action %q", env.Action)
		return resp
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Action %s panicked: %v", env.Action, r)
			resp.Data = nil
			resp.Error = fmt.Sprintf("internal error handling %s", env.Action)
		}
	}()
	logger.Debugf("Received %s", Format(env))
	out, err := h.Handle(ctx, env)
	if err != nil {
		logger.Errorf("Action %s failed: %v", env.Action, err)
		resp.Error = err.Error()
		return resp
	}
	if out != nil {
		b, err := json.Marshal(out)
		if err != nil {
			resp.Error = fmt.Sprintf("encode response: %v", err)
			return resp
		}
		resp.Data = b
	}
	return resp
}

// Send implements Sender for in-process delivery.
func (d *Dispatcher) Send(ctx context.Context, env Envelope) (Response, error) {
	return d.Dispatch(ctx, env), nil
}

package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/logger"
)

// Register installs the background actions on d.
func (c *Coordinator) Register(d *command.Dispatcher) {
	d.Register(command.ActionToggleBlocking, command.HandlerFunc(c.handleToggle))
	d.Register(command.ActionGetBlockingStatus, command.HandlerFunc(c.handleStatus))
	d.Register(command.ActionPageAnalysis, command.HandlerFunc(c.handlePageAnalysis))
	d.Register(command.ActionGetStats, command.HandlerFunc(c.handleStats))
}

func (c *Coordinator) handleToggle(ctx context.Context, _ command.Envelope) (any, error) {
	enabled, err := c.Toggle(ctx)
	if err != nil {
		return nil, err
	}
	return command.BlockingStatus{BlockingEnabled: enabled}, nil
}

func (c *Coordinator) handleStatus(context.Context, command.Envelope) (any, error) {
	return command.BlockingStatus{BlockingEnabled: c.Status()}, nil
}

func (c *Coordinator) handlePageAnalysis(ctx context.Context, env command.Envelope) (any, error) {
	var report *command.PageAnalysis
	if len(env.Data) > 0 {
		report = &command.PageAnalysis{}
		if err := json.Unmarshal(env.Data, report); err != nil {
			return nil, fmt.Errorf("decode page analysis: %w", err)
		}
	}
	tabURL := ""
	if env.Tab != nil {
		tabURL = env.Tab.URL
	}
	if err := c.Ingest(ctx, report, tabURL); err != nil {
		logger.Errorf("Handle page analysis failed: %v", err)
		return command.Ack{Success: false}, nil
	}
	return command.Ack{Success: true}, nil
}

func (c *Coordinator) handleStats(ctx context.Context, _ command.Envelope) (any, error) {
	return c.Stats(ctx)
}

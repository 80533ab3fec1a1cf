package firewall

import (
	"context"
	"fmt"
	"sync"

	"tracker-guard/agent/internal/logger"
)

// Manager keeps the host's dynamic rule set equal to the tracker rule list
// (enabled) or empty (disabled).
type Manager struct {
	host  Host
	rules []Rule
	mu    sync.Mutex
}

func NewManager(host Host) *Manager {
	return &Manager{host: host, rules: Rules()}
}

// Install clears every installed rule and, when enabled, installs the
// tracker rules. Calling it twice with the same argument yields the same
// installed set.
func (m *Manager) Install(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	installed, err := m.host.Rules(ctx)
	if err != nil {
		logger.Errorf("List installed rules failed: %v", err)
		return fmt.Errorf("list rules: %w", err)
	}
	removeIDs := RuleIDs(installed)
	var add []Rule
	if enabled {
		add = m.rules
	}
	if len(removeIDs) == 0 && len(add) == 0 {
		return nil
	}
	if err := m.host.UpdateRules(ctx, add, removeIDs); err != nil {
		logger.Errorf("Update blocking rules failed (enabled=%v): %v", enabled, err)
		return fmt.Errorf("update rules: %w", err)
	}
	logger.Infof("Blocking rules installed=%d removed=%d", len(add), len(removeIDs))
	return nil
}

// Installed lists the host's current rules.
func (m *Manager) Installed(ctx context.Context) ([]Rule, error) {
	return m.host.Rules(ctx)
}

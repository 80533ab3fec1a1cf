package firewall

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tracker-guard/agent/internal/db"

	"gorm.io/gorm"
)

// Host is the packet-filtering subsystem holding the dynamic rule set.
// Matching is entirely the host's business.
type Host interface {
	// UpdateRules removes removeIDs and then adds add, all or nothing.
	UpdateRules(ctx context.Context, add []Rule, removeIDs []int) error
	// Rules lists the currently installed rules.
	Rules(ctx context.Context) ([]Rule, error)
}

func checkUpdate(existing map[int]bool, add []Rule, removeIDs []int) error {
	remaining := make(map[int]bool, len(existing))
	for id := range existing {
		remaining[id] = true
	}
	for _, id := range removeIDs {
		delete(remaining, id)
	}
	for _, r := range add {
		if err := r.Validate(); err != nil {
			return err
		}
		if remaining[r.ID] {
			return fmt.Errorf("%w: duplicate rule id %d", ErrMalformedRule, r.ID)
		}
		remaining[r.ID] = true
	}
	return nil
}

// DBHost keeps the dynamic rule set in the dynamic_rules table so it
// survives agent restarts.
type DBHost struct {
	db *gorm.DB
}

func NewDBHost(gdb *gorm.DB) *DBHost { return &DBHost{db: gdb} }

func (h *DBHost) UpdateRules(ctx context.Context, add []Rule, removeIDs []int) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int
		if err := tx.Model(&db.DynamicRule{}).Pluck("id", &ids).Error; err != nil {
			return err
		}
		existing := make(map[int]bool, len(ids))
		for _, id := range ids {
			existing[id] = true
		}
		if err := checkUpdate(existing, add, removeIDs); err != nil {
			return err
		}
		if len(removeIDs) > 0 {
			if err := tx.Where("id IN ?", removeIDs).Delete(&db.DynamicRule{}).Error; err != nil {
				return err
			}
		}
		if len(add) == 0 {
			return nil
		}
		rows := make([]db.DynamicRule, len(add))
		for i, r := range add {
			rows[i] = db.DynamicRule{
				ID:            r.ID,
				Priority:      r.Priority,
				Action:        string(r.Action),
				URLFilter:     r.URLFilter,
				ResourceTypes: strings.Join(r.ResourceTypes, ","),
			}
		}
		return tx.Create(&rows).Error
	})
}

func (h *DBHost) Rules(ctx context.Context) ([]Rule, error) {
	var rows []db.DynamicRule
	if err := h.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Rule, len(rows))
	for i, row := range rows {
		var types []string
		if row.ResourceTypes != "" {
			types = strings.Split(row.ResourceTypes, ",")
		}
		out[i] = Rule{
			ID:            row.ID,
			Priority:      row.Priority,
			Action:        Action(row.Action),
			URLFilter:     row.URLFilter,
			ResourceTypes: types,
		}
	}
	return out, nil
}

// MemoryHost is an in-process Host. FailNext makes the next update fail.
type MemoryHost struct {
	mu       sync.Mutex
	rules    map[int]Rule
	failNext error
	updates  int
}

func NewMemoryHost() *MemoryHost { return &MemoryHost{rules: map[int]Rule{}} }

func (h *MemoryHost) FailNext(err error) {
	h.mu.Lock()
	h.failNext = err
	h.mu.Unlock()
}

// Updates counts successful UpdateRules calls.
func (h *MemoryHost) Updates() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.updates
}

func (h *MemoryHost) UpdateRules(_ context.Context, add []Rule, removeIDs []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.failNext; err != nil {
		h.failNext = nil
		return err
	}
	existing := make(map[int]bool, len(h.rules))
	for id := range h.rules {
		existing[id] = true
	}
	if err := checkUpdate(existing, add, removeIDs); err != nil {
		return err
	}
	for _, id := range removeIDs {
		delete(h.rules, id)
	}
	for _, r := range add {
		h.rules[r.ID] = r
	}
	h.updates++
	return nil
}

func (h *MemoryHost) Rules(_ context.Context) ([]Rule, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Rule, 0, len(h.rules))
	for _, r := range h.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

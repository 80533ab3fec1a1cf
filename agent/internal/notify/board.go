package notify

import (
	"sort"
	"sync"

	"tracker-guard/agent/internal/logger"
)

// Board is an in-memory Surface. Terminal front ends render its Lines.
type Board struct {
	mu    sync.Mutex
	items map[string]string
	order []string
}

func NewBoard() *Board { return &Board{items: map[string]string{}} }

func (b *Board) Add(id, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[id]; !ok {
		b.order = append(b.order, id)
	}
	b.items[id] = text
	logger.L.Debug().Str("notice", id).Msg(text)
}

func (b *Board) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, id)
	for i, o := range b.order {
		if o == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Lines returns the visible notices, oldest first.
func (b *Board) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.items[id])
	}
	return out
}

// IDs returns the visible notice ids in sorted order.
func (b *Board) IDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.items))
	for id := range b.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

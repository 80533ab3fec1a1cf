package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Actions recognised on the message bus.
const (
	ActionToggleBlocking    = "toggleBlocking"
	ActionGetBlockingStatus = "getBlockingStatus"
	ActionPageAnalysis      = "pageAnalysis"
	ActionGetStats          = "getStats"
	ActionGetPageData       = "getPageData"
)

// Context identifies which kind of actor sent a message.
type Context string

const (
	ContextBackground Context = "background"
	ContextPopup      Context = "popup"
	ContextPage       Context = "page"
)

// pageActions are the only actions a page context may send.
var pageActions = map[string]bool{
	ActionPageAnalysis: true,
	ActionGetPageData:  true,
}

// Allowed reports whether ctx may send action.
func Allowed(ctx Context, action string) bool {
	switch ctx {
	case ContextBackground, ContextPopup:
		return true
	case ContextPage:
		return pageActions[action]
	}
	return false
}

// Tab describes the page a message originates from.
type Tab struct {
	ID  int    `json:"id,omitempty"`
	URL string `json:"url"`
}

type Envelope struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
	URL    string          `json:"url,omitempty"`
	Tab    *Tab            `json:"tab,omitempty"`
	// Sender is stamped by the transport from the caller's credentials.
	Sender Context `json:"-"`
}

type Response struct {
	ID    string          `json:"id"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PageAnalysis is what a page observer reports after scanning a page.
type PageAnalysis struct {
	Trackers     []string `json:"trackers"`
	TotalScripts int      `json:"totalScripts"`
	BlockedCount int      `json:"blockedCount"`
}

type BlockingStatus struct {
	BlockingEnabled bool `json:"blockingEnabled"`
}

type Stats struct {
	DailyBlocked uint64 `json:"dailyBlocked"`
	TotalBlocked uint64 `json:"totalBlocked"`
}

type Ack struct {
	Success bool `json:"success"`
}

// NewEnvelope builds a message with a fresh id and JSON-encoded data.
func NewEnvelope(action string, data any) (Envelope, error) {
	env := Envelope{ID: uuid.NewString(), Action: action}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s data: %w", action, err)
		}
		env.Data = b
	}
	return env, nil
}

// ErrRemote wraps an error reported by the receiving side.
var ErrRemote = errors.New("remote error")

// Decode turns a response into a typed value, mapping Error to ErrRemote.
func Decode[T any](resp Response) (T, error) {
	var out T
	if resp.Error != "" {
		return out, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	if len(resp.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

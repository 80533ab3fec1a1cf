package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tracker-guard/agent/internal/command"
)

// Client sends envelopes to the background bus server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Dial signs a token for c and returns a client for it.
func Dial(baseURL string, s *Signer, c command.Context) (*Client, error) {
	tok, err := s.Sign(c)
	if err != nil {
		return nil, fmt.Errorf("sign bus token: %w", err)
	}
	return NewClient(baseURL, tok), nil
}

func (c *Client) Send(ctx context.Context, env command.Envelope) (command.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return command.Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MessagePath, bytes.NewReader(body))
	if err != nil {
		return command.Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	res, err := c.http.Do(req)
	if err != nil {
		return command.Response{}, fmt.Errorf("send %s: %w", env.Action, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&e)
		return command.Response{}, fmt.Errorf("send %s: status %d: %s", env.Action, res.StatusCode, e.Error)
	}
	var resp command.Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return command.Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

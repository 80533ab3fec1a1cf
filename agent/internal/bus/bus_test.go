package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/observer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Signer) {
	t.Helper()
	d := command.NewDispatcher()
	enabled := true
	d.Register(command.ActionToggleBlocking, command.HandlerFunc(func(ctx context.Context, env command.Envelope) (any, error) {
		enabled = !enabled
		return command.BlockingStatus{BlockingEnabled: enabled}, nil
	}))
	d.Register(command.ActionPageAnalysis, command.HandlerFunc(func(ctx context.Context, env command.Envelope) (any, error) {
		return command.Ack{Success: env.Tab != nil}, nil
	}))
	s := &Signer{Secret: []byte("test-secret"), Issuer: "tracker-guard", ExpMin: 5}
	ts := httptest.NewServer(NewServer(d, s).Handler())
	t.Cleanup(ts.Close)
	return ts, s
}

func TestClient_PopupCanToggle(t *testing.T) {
	ts, s := newTestServer(t)
	c, err := Dial(ts.URL, s, command.ContextPopup)
	require.NoError(t, err)

	env, err := command.NewEnvelope(command.ActionToggleBlocking, nil)
	require.NoError(t, err)
	resp, err := c.Send(context.Background(), env)
	require.NoError(t, err)

	status, err := command.Decode[command.BlockingStatus](resp)
	require.NoError(t, err)
	assert.False(t, status.BlockingEnabled)
	assert.Equal(t, env.ID, resp.ID)
}

func TestClient_PageCannotToggle(t *testing.T) {
	ts, s := newTestServer(t)
	c, err := Dial(ts.URL, s, command.ContextPage)
	require.NoError(t, err)

	env, _ := command.NewEnvelope(command.ActionToggleBlocking, nil)
	_, err = c.Send(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	env, _ = command.NewEnvelope(command.ActionPageAnalysis, command.PageAnalysis{BlockedCount: 1})
	env.Tab = &command.Tab{URL: "https://example.com"}
	resp, err := c.Send(context.Background(), env)
	require.NoError(t, err)
	ack, err := command.Decode[command.Ack](resp)
	require.NoError(t, err)
	assert.True(t, ack.Success)
}

func TestServer_RejectsBadTokens(t *testing.T) {
	ts, _ := newTestServer(t)
	other := &Signer{Secret: []byte("other"), Issuer: "tracker-guard", ExpMin: 5}
	c, err := Dial(ts.URL, other, command.ContextPopup)
	require.NoError(t, err)

	env, _ := command.NewEnvelope(command.ActionToggleBlocking, nil)
	_, err = c.Send(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	res, err := http.Post(ts.URL+MessagePath, "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestServer_Ping(t *testing.T) {
	ts, _ := newTestServer(t)
	res, err := http.Get(ts.URL + "/ping")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSigner_RoundTrip(t *testing.T) {
	s := &Signer{Secret: []byte("k"), Issuer: "tracker-guard", ExpMin: 1}
	tok, err := s.Sign(command.ContextPage)
	require.NoError(t, err)
	claims, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, command.ContextPage, claims.Context)

	expired := &Signer{Secret: []byte("k"), Issuer: "tracker-guard", ExpMin: -1}
	tok, err = expired.Sign(command.ContextPage)
	require.NoError(t, err)
	_, err = s.Parse(tok)
	assert.Error(t, err)
}

func TestServer_PageTokenCannotReadLocalFiles(t *testing.T) {
	page := filepath.Join(t.TempDir(), "private.html")
	require.NoError(t, os.WriteFile(page, []byte(`<script src="https://doubleclick.net/x.js"></script>`), 0o600))

	d := command.NewDispatcher()
	d.Register(command.ActionGetPageData, observer.PageDataHandler(observer.NewHTTPFetcher(), func() []string { return []string{"doubleclick.net"} }))
	s := &Signer{Secret: []byte("test-secret"), Issuer: "tracker-guard", ExpMin: 5}
	ts := httptest.NewServer(NewServer(d, s).Handler())
	t.Cleanup(ts.Close)

	pageClient, err := Dial(ts.URL, s, command.ContextPage)
	require.NoError(t, err)
	for _, target := range []string{page, "file://" + page} {
		env, _ := command.NewEnvelope(command.ActionGetPageData, nil)
		env.URL = target
		resp, err := pageClient.Send(context.Background(), env)
		require.NoError(t, err)
		assert.Contains(t, resp.Error, "http(s)", target)
		assert.Empty(t, resp.Data, target)
	}

	popupClient, err := Dial(ts.URL, s, command.ContextPopup)
	require.NoError(t, err)
	env, _ := command.NewEnvelope(command.ActionGetPageData, nil)
	env.URL = page
	resp, err := popupClient.Send(context.Background(), env)
	require.NoError(t, err)
	rep, err := command.Decode[observer.Report](resp)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.BlockedCount)
}

func TestServer_SenderCannotBeForged(t *testing.T) {
	d := command.NewDispatcher()
	seen := make(chan command.Context, 1)
	d.Register(command.ActionGetPageData, command.HandlerFunc(func(ctx context.Context, env command.Envelope) (any, error) {
		seen <- env.Sender
		return command.Ack{Success: true}, nil
	}))
	s := &Signer{Secret: []byte("test-secret"), Issuer: "tracker-guard", ExpMin: 5}
	ts := httptest.NewServer(NewServer(d, s).Handler())
	t.Cleanup(ts.Close)

	c, err := Dial(ts.URL, s, command.ContextPage)
	require.NoError(t, err)
	env, _ := command.NewEnvelope(command.ActionGetPageData, nil)
	env.Sender = command.ContextPopup
	_, err = c.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, command.ContextPage, <-seen)
}

func TestSigner_Check(t *testing.T) {
	for _, secret := range []string{"", "dev-secret", "change-me", "short"} {
		s := &Signer{Secret: []byte(secret)}
		assert.ErrorIs(t, s.Check(), ErrWeakSecret, secret)
	}
	s := &Signer{Secret: []byte("0123456789abcdef0123")}
	assert.NoError(t, s.Check())
}

func TestServer_ServeRefusesWeakSecret(t *testing.T) {
	srv := NewServer(command.NewDispatcher(), &Signer{Secret: []byte("change-me")})
	err := srv.Serve(context.Background(), "127.0.0.1:0")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/firewall"
	"tracker-guard/agent/internal/kv"
	"tracker-guard/agent/internal/notify"
	"tracker-guard/agent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head>
<script src="https://www.google-analytics.com/analytics.js"></script>
<script src="https://connect.facebook.com/tr?id=1"></script>
<script src="/static/app.js"></script>
<script>inline()</script>
<script src="  "></script>
</head><body></body></html>`

func TestAnalyze_CountsTrackerPairs(t *testing.T) {
	rep, err := Analyze(strings.NewReader(page), "https://news.example.com/a", firewall.KnownTrackers)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.TotalScripts)
	assert.Equal(t, 2, rep.BlockedCount)
	assert.Equal(t, []string{"google-analytics.com", "facebook.com/tr"}, rep.Trackers)
}

func TestAnalyze_OneScriptManyTrackers(t *testing.T) {
	doc := `<script src="https://doubleclick.net/x?ref=googletagmanager.com"></script>`
	rep, err := Analyze(strings.NewReader(doc), "", firewall.KnownTrackers)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalScripts)
	assert.Equal(t, 2, rep.BlockedCount)
}

func TestAnalyze_ResolvesAgainstBase(t *testing.T) {
	doc := `<html><head><base href="https://ads.adnxs.com/"></head>
<body><script src="lib/tag.js"></script></body></html>`
	rep, err := Analyze(strings.NewReader(doc), "file:///tmp/saved.html", firewall.KnownTrackers)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.BlockedCount)
	assert.Equal(t, "https://ads.adnxs.com/", rep.URL)
}

func TestAnalyze_NoScripts(t *testing.T) {
	rep, err := Analyze(strings.NewReader("<p>hi</p>"), "https://a.io", firewall.KnownTrackers)
	require.NoError(t, err)
	assert.Zero(t, rep.TotalScripts)
	assert.NotNil(t, rep.Trackers)
}

type recordingSender struct {
	mu   sync.Mutex
	envs []command.Envelope
	err  error
}

func (r *recordingSender) Send(_ context.Context, env command.Envelope) (command.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return command.Response{ID: env.ID}, r.err
}

func (r *recordingSender) sent() []command.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Envelope(nil), r.envs...)
}

func newObserver(t *testing.T) (*Observer, *recordingSender, *notify.Board, kv.Store) {
	t.Helper()
	store := kv.NewMemory()
	sender := &recordingSender{}
	board := notify.NewBoard()
	return New(state.ForObserver(store), sender, board, nil), sender, board, store
}

func TestObserve_ReportsAndShowsBanner(t *testing.T) {
	o, sender, board, _ := newObserver(t)
	rep, ok, err := o.Observe(context.Background(), "https://news.example.com/a", strings.NewReader(page))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, rep.BlockedCount)
	assert.Equal(t, []string{"Blocked: 2"}, board.Lines())

	o.Wait()
	envs := sender.sent()
	require.Len(t, envs, 1)
	assert.Equal(t, command.ActionPageAnalysis, envs[0].Action)
	require.NotNil(t, envs[0].Tab)
	assert.Equal(t, "https://news.example.com/a", envs[0].Tab.URL)
	var got command.PageAnalysis
	require.NoError(t, json.Unmarshal(envs[0].Data, &got))
	assert.Equal(t, 2, got.BlockedCount)

	o.DismissBanner()
	assert.Empty(t, board.Lines())
}

func TestObserve_NewBannerReplacesOld(t *testing.T) {
	o, _, board, _ := newObserver(t)
	ctx := context.Background()
	_, _, err := o.Observe(ctx, "https://a.io", strings.NewReader(page))
	require.NoError(t, err)
	_, _, err = o.Observe(ctx, "https://b.io", strings.NewReader(`<script src="https://doubleclick.net/x"></script>`))
	require.NoError(t, err)
	o.Wait()
	assert.Equal(t, []string{"Blocked: 1"}, board.Lines())
}

func TestObserve_CleanPageStillReports(t *testing.T) {
	o, sender, board, _ := newObserver(t)
	_, ok, err := o.Observe(context.Background(), "https://a.io", strings.NewReader("<p>clean</p>"))
	require.NoError(t, err)
	assert.True(t, ok)
	o.Wait()
	assert.Empty(t, board.Lines())
	assert.Len(t, sender.sent(), 1)
}

func TestObserve_DisabledDoesNothing(t *testing.T) {
	o, sender, board, store := newObserver(t)
	require.NoError(t, state.New(store).SetEnabled(context.Background(), false))

	_, ok, err := o.Observe(context.Background(), "https://a.io", strings.NewReader(page))
	require.NoError(t, err)
	assert.False(t, ok)
	o.Wait()
	assert.Empty(t, sender.sent())
	assert.Empty(t, board.Lines())
}

func TestObserve_SendFailureIsSwallowed(t *testing.T) {
	o, sender, _, _ := newObserver(t)
	sender.err = fmt.Errorf("bus down")
	_, ok, err := o.Observe(context.Background(), "https://a.io", strings.NewReader(page))
	require.NoError(t, err)
	assert.True(t, ok)
	o.Wait()
}

func TestPageDataHandler(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	o, _, board, _ := newObserver(t)
	d := command.NewDispatcher()
	o.Register(d, NewHTTPFetcher())

	env, err := command.NewEnvelope(command.ActionGetPageData, nil)
	require.NoError(t, err)
	env.Tab = &command.Tab{URL: ts.URL}
	rep, err := command.Decode[Report](d.Dispatch(context.Background(), env))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.TotalScripts)
	assert.Equal(t, 2, rep.BlockedCount)
	assert.Empty(t, board.Lines())

	env.Tab = nil
	_, err = command.Decode[Report](d.Dispatch(context.Background(), env))
	assert.ErrorIs(t, err, command.ErrRemote)
}

func TestWatch_ObservesSavedPages(t *testing.T) {
	dir := t.TempDir()
	o, sender, _, _ := newObserver(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan Report, 4)
	done := make(chan error, 1)
	go func() {
		done <- o.Watch(ctx, []string{dir}, func(_ string, rep Report, ok bool) {
			if !ok {
				return
			}
			select {
			case seen <- rep:
			default:
			}
		})
	}()

	// The watcher registers asynchronously; keep rewriting until it fires.
	path := filepath.Join(dir, "saved.html")
	deadline := time.After(5 * time.Second)
	var rep Report
loop:
	for {
		require.NoError(t, os.WriteFile(path, []byte(page), 0o644))
		select {
		case rep = <-seen:
			break loop
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("saved page was not observed")
		}
	}
	assert.Equal(t, 2, rep.BlockedCount)

	cancel()
	require.NoError(t, <-done)
	o.Wait()
	assert.NotEmpty(t, sender.sent())
}

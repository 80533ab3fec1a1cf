package observer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"tracker-guard/agent/internal/command"
)

var (
	ErrNoPage = errors.New("no page url")
	// ErrPageScheme is returned when a page context names anything but a web page.
	ErrPageScheme = errors.New("pages may only request http(s) urls")
)

const maxPageBytes = 8 << 20

// Fetcher loads a page body for analysis.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (io.ReadCloser, error)
}

// HTTPFetcher loads http(s) pages over the network and file:// pages or
// bare paths from disk.
type HTTPFetcher struct {
	Client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (io.ReadCloser, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	case "file", "":
		path := u.Path
		if u.Scheme == "" {
			path = pageURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tracker-guard/1.0")
	res, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if res.StatusCode >= 400 {
		res.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, res.StatusCode)
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(res.Body, maxPageBytes), res.Body}, nil
}

// PageDataHandler answers getPageData with a fresh analysis of the page
// named by the envelope. It does not touch counters or the banner.
func PageDataHandler(f Fetcher, trackers func() []string) command.Handler {
	return command.HandlerFunc(func(ctx context.Context, env command.Envelope) (any, error) {
		pageURL := env.URL
		if pageURL == "" && env.Tab != nil {
			pageURL = env.Tab.URL
		}
		if strings.TrimSpace(pageURL) == "" {
			return nil, ErrNoPage
		}
		if env.Sender == command.ContextPage && !isWebURL(pageURL) {
			return nil, ErrPageScheme
		}
		body, err := f.Fetch(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return Analyze(body, pageURL, trackers())
	})
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Register installs the page-side actions on d.
func (o *Observer) Register(d *command.Dispatcher, f Fetcher) {
	d.Register(command.ActionGetPageData, PageDataHandler(f, o.Trackers))
}

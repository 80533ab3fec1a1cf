// Package observer scans loaded pages for tracker scripts and reports them
// to the background coordinator.
package observer

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"tracker-guard/agent/internal/command"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Report is the analysis of one page plus the address it was taken from.
type Report struct {
	command.PageAnalysis
	URL string `json:"url,omitempty"`
}

// Analyze counts script[src] elements and the trackers they reference.
// Relative sources are resolved against the document's <base href> when it
// has one, otherwise against pageURL. Every (script, tracker) containment pair
// counts once, so one script may match several trackers.
func Analyze(doc io.Reader, pageURL string, trackers []string) (Report, error) {
	root, err := html.Parse(doc)
	if err != nil {
		return Report{}, fmt.Errorf("parse page: %w", err)
	}
	rep := Report{URL: pageURL}
	rep.Trackers = []string{}

	page, _ := url.Parse(pageURL)
	base := page
	if href := findBase(root); href != "" {
		if b, err := resolve(page, href); err == nil && b.IsAbs() {
			base = b
			// Saved pages report the site they were saved from.
			if page == nil || page.Scheme == "" || page.Scheme == "file" {
				rep.URL = b.String()
			}
		}
	}

	for _, src := range scriptSources(root) {
		rep.TotalScripts++
		full := src
		if u, err := resolve(base, src); err == nil {
			full = u.String()
		}
		for _, t := range trackers {
			if strings.Contains(full, t) {
				rep.Trackers = append(rep.Trackers, t)
				rep.BlockedCount++
			}
		}
	}
	return rep, nil
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	if base == nil {
		return u, nil
	}
	return base.ResolveReference(u), nil
}

func scriptSources(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			if src := attr(n, "src"); strings.TrimSpace(src) != "" {
				out = append(out, src)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findBase returns the first <base href> of the document.
func findBase(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Base {
		if href := attr(n, "href"); href != "" {
			return href
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if h := findBase(c); h != "" {
			return h
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

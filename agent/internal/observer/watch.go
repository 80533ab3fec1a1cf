package observer

import (
	"context"
	"net/url"
	"os"

	"tracker-guard/agent/internal/logger"
	"tracker-guard/agent/internal/monitor"
)

// PageFunc receives the result of each observed page.
type PageFunc func(path string, rep Report, ok bool)

// Watch treats every html file written under dirs as a page load until ctx
// is cancelled. fn may be nil.
func (o *Observer) Watch(ctx context.Context, dirs []string, fn PageFunc) error {
	pm, err := monitor.New(dirs)
	if err != nil {
		return err
	}
	defer pm.Close()
	events := pm.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, open := <-events:
			if !open {
				return nil
			}
			o.observeFile(ctx, evt.Path, fn)
		}
	}
}

func (o *Observer) observeFile(ctx context.Context, path string, fn PageFunc) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warnf("Open page %s: %v", path, err)
		return
	}
	defer f.Close()
	pageURL := (&url.URL{Scheme: "file", Path: path}).String()
	rep, ok, err := o.Observe(ctx, pageURL, f)
	if err != nil {
		logger.Errorf("Observe %s: %v", path, err)
		return
	}
	if ok {
		logger.Infof("Page %s: %d trackers in %d scripts", path, rep.BlockedCount, rep.TotalScripts)
	}
	if fn != nil {
		fn(path, rep, ok)
	}
}

// Package monitor watches directories of saved pages with fsnotify.
package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tracker-guard/agent/internal/logger"

	"github.com/fsnotify/fsnotify"
)

// ActionType describes what happened to a page file.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionModify ActionType = "modify"
)

// PageEvent reports that a page file was written and should be treated as a
// fresh page load.
type PageEvent struct {
	Action    ActionType
	Path      string
	Timestamp time.Time
}

const eventQueueSize = 128

var pageExts = map[string]bool{".html": true, ".htm": true}

// PageMonitor watches directories (recursively) for html files.
type PageMonitor struct {
	watcher    *fsnotify.Watcher
	watchedDir map[string]struct{}
	mu         sync.Mutex

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a watcher for the given paths. Files are normalized to their
// parent directory.
func New(paths []string) (*PageMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	pm := &PageMonitor{
		watcher:    watcher,
		watchedDir: make(map[string]struct{}),
		stop:       make(chan struct{}),
	}

	for _, raw := range paths {
		abs, err := filepath.Abs(raw)
		if err != nil {
			logger.Errorf("Failed to resolve %s: %v", raw, err)
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			logger.Errorf("Invalid path %s: %v", abs, err)
			continue
		}
		dir := abs
		if !info.IsDir() {
			dir = filepath.Dir(abs)
		}
		if err := pm.watchRecursive(filepath.Clean(dir)); err != nil {
			logger.Errorf("Failed to watch %s: %v", dir, err)
			continue
		}
		logger.Infof("Watching pages in: %s", dir)
	}

	if len(pm.watchedDir) == 0 {
		_ = pm.watcher.Close()
		return nil, errors.New("page monitor: no valid directories to watch")
	}
	return pm, nil
}

// Events starts the watch loop. The channel is closed after Close.
func (p *PageMonitor) Events() <-chan PageEvent {
	out := make(chan PageEvent, eventQueueSize)

	p.wg.Add(1)
	go p.processEvents(out)

	go func() {
		p.wg.Wait()
		close(out)
	}()
	return out
}

func (p *PageMonitor) processEvents(out chan<- PageEvent) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case evt, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(evt, out)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			logger.Errorf("Page watcher error: %v", err)
		}
	}
}

func (p *PageMonitor) handleEvent(evt fsnotify.Event, out chan<- PageEvent) {
	path := filepath.Clean(evt.Name)
	now := time.Now()

	if evt.Op&fsnotify.Create != 0 {
		if isDir(path) {
			if err := p.watchRecursive(path); err != nil {
				logger.Warnf("Failed to watch new directory %s: %v", path, err)
			}
			return
		}
		emit(out, PageEvent{Action: ActionCreate, Path: path, Timestamp: now})
	}
	if evt.Op&fsnotify.Write != 0 {
		emit(out, PageEvent{Action: ActionModify, Path: path, Timestamp: now})
	}
	if evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		p.removeWatch(path)
	}
}

func (p *PageMonitor) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logger.Warnf("Failed to access %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return p.addWatch(path)
	})
}

func (p *PageMonitor) addWatch(dir string) error {
	p.mu.Lock()
	if _, exists := p.watchedDir[dir]; exists {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.watcher.Add(dir); err != nil {
		return err
	}

	p.mu.Lock()
	p.watchedDir[dir] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *PageMonitor) removeWatch(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.watchedDir[path]; ok {
		if err := p.watcher.Remove(path); err != nil {
			logger.Warnf("Failed to remove watcher for %s: %v", path, err)
		}
		delete(p.watchedDir, path)
	}
}

// Close stops the watch loop and releases the watcher.
func (p *PageMonitor) Close() error {
	var closeErr error
	p.once.Do(func() {
		close(p.stop)
		if err := p.watcher.Close(); err != nil {
			closeErr = err
		}
	})
	p.wg.Wait()
	return closeErr
}

// IsPage reports whether path names an html file.
func IsPage(path string) bool {
	return pageExts[strings.ToLower(filepath.Ext(path))]
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func emit(out chan<- PageEvent, evt PageEvent) {
	if !IsPage(evt.Path) {
		return
	}
	select {
	case out <- evt:
	default:
		logger.Errorf("Page monitor backpressure, dropping event %+v", evt)
	}
}

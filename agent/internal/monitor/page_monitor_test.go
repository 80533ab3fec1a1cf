package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPage(t *testing.T) {
	assert.True(t, IsPage("/tmp/a.html"))
	assert.True(t, IsPage("B.HTM"))
	assert.False(t, IsPage("notes.txt"))
	assert.False(t, IsPage("dir"))
}

func TestPageMonitor_ReportsHTMLWrites(t *testing.T) {
	dir := t.TempDir()
	pm, err := New([]string{dir})
	require.NoError(t, err)
	defer pm.Close()
	events := pm.Events()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte("<html></html>"), 0o644))

	select {
	case evt := <-events:
		assert.Equal(t, page, evt.Path)
	case <-time.After(3 * time.Second):
		t.Fatal("no page event")
	}
}

func TestNew_NoValidDirs(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

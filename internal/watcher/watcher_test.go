package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestFilters(t *testing.T) {
	pages := ExtFilter(".html", ".css")
	assert.True(t, pages("pages/index.html"))
	assert.True(t, pages("styles/THEME.CSS"))
	assert.False(t, pages("pages/index.html123456"), "atomic write temp files are ignored")
	assert.False(t, pages("images/x.png"))

	assert.True(t, NoHiddenFilter("pages/a.html"))
	assert.False(t, NoHiddenFilter("pages/.a.html.swp"))
}

func TestValidatePath(t *testing.T) {
	_, err := validatePath("../outside")
	assert.Error(t, err)
	_, err = validatePath("")
	assert.Error(t, err)

	p, err := validatePath("site/./pages/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("site", "pages"), p)
}

func TestDebouncerDeduplicates(t *testing.T) {
	d := &Debouncer{
		delay:  20 * time.Millisecond,
		events: make(chan ChangeEvent, 10),
		output: make(chan []ChangeEvent, 1),
	}
	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "b.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.html"})

	select {
	case batch := <-d.output:
		require.Len(t, batch, 2)
		assert.Equal(t, "a.html", batch[0].Path)
		assert.Equal(t, "b.html", batch[1].Path)
		assert.Equal(t, EventTypeModified, batch[1].Type)
	case <-time.After(time.Second):
		t.Fatal("no batch delivered")
	}
}

func TestFileWatcher_DeliversPageChanges(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	fw, err := NewFileWatcher(30*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(ExtFilter(".html"))
	fw.AddFilter(NoHiddenFilter)
	require.NoError(t, fw.AddPath(dir))

	var mu sync.Mutex
	var seen []ChangeEvent
	fw.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, events...)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>a</p>"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range seen {
			if filepath.Base(e.Path) == "index.html" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, e := range seen {
		assert.NotEqual(t, "notes.txt", filepath.Base(e.Path))
	}
}

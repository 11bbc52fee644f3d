package components

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/fragments"
)

func TestCatalog_DefineAndWatch(t *testing.T) {
	c := NewCatalog()
	events := c.Watch()

	assert.True(t, c.Define(&Definition{ID: "card", Fragment: "<div>a</div>"}))
	assert.False(t, c.Define(&Definition{ID: "card", Fragment: "<div>a</div>"}), "same hash is not a change")
	assert.True(t, c.Define(&Definition{ID: "card", Fragment: "<div>b</div>"}))
	c.Remove("card")

	var got []EventType
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			assert.Equal(t, "card", ev.ID)
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []EventType{EventAdded, EventUpdated, EventRemoved}, got)

	c.UnWatch(events)
	_, open := <-events
	assert.False(t, open)
}

func TestCatalog_Track(t *testing.T) {
	c := NewCatalog()
	c.Define(&Definition{ID: "nav", Fragment: "<nav></nav>"})

	c.Track("a.html", map[string][]InstanceLocation{
		"nav":  {{Page: "a.html", Path: "/html[1]/body[1]/nav[1]"}},
		"card": {{Page: "a.html", Path: "/html[1]/body[1]/div[1]"}},
	})
	c.Track("b.html", map[string][]InstanceLocation{
		"nav": {{Page: "b.html", Path: "/html[1]/body[1]/nav[1]"}},
	})

	nav, ok := c.Get("nav")
	require.True(t, ok)
	assert.Len(t, nav.Instances, 2)
	assert.Equal(t, 2, c.Count())

	// a.html no longer uses any component: the definition-less card entry goes.
	c.Track("a.html", nil)
	nav, _ = c.Get("nav")
	assert.Len(t, nav.Instances, 1)
	_, ok = c.Get("card")
	assert.False(t, ok)

	all := c.All()
	require.Len(t, all, 1)
	assert.Equal(t, "nav", all[0].ID)
}

func TestCatalog_Load(t *testing.T) {
	dir := t.TempDir()
	fs := fragments.NewFileStore(filepath.Join(dir, "components"), filepath.Join(dir, "styles"))
	ctx := context.Background()
	require.NoError(t, fs.Put(ctx, fragments.KindComponent, "hero", "<section></section>"))

	c := NewCatalog()
	require.NoError(t, c.Load(ctx, fs))

	hero, ok := c.Get("hero")
	require.True(t, ok)
	assert.Equal(t, Hash("<section></section>"), hero.Definition.Hash)
}

package fragments

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/errors"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlStore, err := OpenSQLStore(filepath.Join(dir, "fragments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(dir, "components"), filepath.Join(dir, "styles")),
		"sqlite": sqlStore,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, KindComponent, "card-1")
			require.NoError(t, err)
			assert.False(t, ok, "missing record is not an error")

			require.NoError(t, store.Put(ctx, KindComponent, "card-1", `<div class="card">a</div>`))
			require.NoError(t, store.Put(ctx, KindComponent, "Card 1", `<div class="card">b</div>`))
			require.NoError(t, store.Put(ctx, KindComponent, "banner", `<header>x</header>`))
			require.NoError(t, store.Put(ctx, KindStyle, "theme", `body{color:red}`))

			body, ok, err := store.Get(ctx, KindComponent, "card-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `<div class="card">b</div>`, body, "ids are sanitized before storage")

			records, err := store.List(ctx, KindComponent)
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "banner", records[0].ID)
			assert.Equal(t, "card-1", records[1].ID)

			styles, err := store.List(ctx, KindStyle)
			require.NoError(t, err)
			require.Len(t, styles, 1)
			assert.Equal(t, "body{color:red}", styles[0].Body)

			require.NoError(t, store.Delete(ctx, KindComponent, "banner"))
			require.NoError(t, store.Delete(ctx, KindComponent, "banner"))
			_, ok, err = store.Get(ctx, KindComponent, "banner")
			require.NoError(t, err)
			assert.False(t, ok)

			err = store.Put(ctx, KindComponent, "!!!", "x")
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "components"), filepath.Join(dir, "styles"))
	require.NoError(t, store.Put(context.Background(), KindComponent, "card-1", "<p>x</p>"))

	data, err := os.ReadFile(filepath.Join(dir, "components", "card-1.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", string(data))
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Site.Root = t.TempDir()

	store, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	cfg.Components.Backend = config.BackendSQLite
	store, err = Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, store)
	require.NoError(t, store.Close())
	assert.FileExists(t, filepath.Join(cfg.Site.Root, cfg.Components.DSN))

	cfg.Components.Backend = "redis"
	_, err = Open(cfg)
	assert.Error(t, err)
}

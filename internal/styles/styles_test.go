package styles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/fragments"
)

func newMaterializer(t *testing.T) (*Materializer, fragments.Store) {
	t.Helper()
	dir := t.TempDir()
	fs := fragments.NewFileStore(filepath.Join(dir, "components"), filepath.Join(dir, "styles"))
	return New(fs, nil), fs
}

func TestMaterialize(t *testing.T) {
	m, _ := newMaterializer(t)
	ctx := context.Background()
	require.NoError(t, m.Save(ctx, "theme", "body > p { color: red; }"))

	src := `<html><head>
<link rel="stylesheet" href="/css/theme.css" data-cms-style="theme">
<style data-cms-style="missing">h1{}</style>
</head><body></body></html>`

	out, err := m.Materialize(ctx, src)
	require.NoError(t, err)
	assert.Contains(t, out, `<style data-cms-style="theme">body > p { color: red; }</style>`)
	assert.NotContains(t, out, "/css/theme.css")
	assert.Contains(t, out, `<style data-cms-style="missing">h1{}</style>`)
}

func TestCapture(t *testing.T) {
	m, fs := newMaterializer(t)
	ctx := context.Background()

	src := `<head><style data-cms-style="Brand">
  .hero { color: blue }
</style><style>ignored{}</style><link data-cms-style="x" href="a.css"></head>`

	saved, err := m.Capture(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand"}, saved)

	css, ok, err := fs.Get(ctx, fragments.KindStyle, "brand")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ".hero { color: blue }", css)

	saved, err = m.Capture(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/errors"
)

func TestDocuments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	docs := NewDocuments(dir)
	ctx := context.Background()

	pages, err := docs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, pages)

	_, err = docs.Read(ctx, "index")
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, docs.Write(ctx, "Index", "<p>home</p>"))
	require.NoError(t, docs.Write(ctx, "about.html", "<p>about</p>"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src, err := docs.Read(ctx, "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>home</p>", src)

	ok, err := docs.Exists(ctx, "about")
	require.NoError(t, err)
	assert.True(t, ok)

	pages, err = docs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"about.html", "index.html"}, pages)

	require.NoError(t, docs.Delete(ctx, "about"))
	require.NoError(t, docs.Delete(ctx, "about"))
	ok, err = docs.Exists(ctx, "about")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocuments_RejectsTraversal(t *testing.T) {
	docs := NewDocuments(t.TempDir())
	ctx := context.Background()

	for _, name := range []string{"../secret.html", "a/b.html", `..\x.html`} {
		err := docs.Write(ctx, name, "x")
		assert.True(t, errors.IsSecurityError(err), name)
	}
}

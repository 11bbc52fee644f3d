package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/errors"
)

func TestExtract(t *testing.T) {
	doc := `<html><body data-cms-site="Acme Corp">
<h1 data-cms-text="hero.title">
   Hello <em>world</em>
</h1>
<img data-cms-image="hero.img" src="/images/x.png">
<div data-cms-image="hero.bgimg" style="background-image: url(/images/y.png)"></div>
<section data-cms-bg="band" style="color: red; background-image: url('https://cdn.example.com/z.jpg')"></section>
<p>untagged</p>
</body></html>`

	c, err := Extract(doc)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"hero.title": "Hello world",
		"hero.img":   "/images/x.png",
		"hero.bgimg": "/images/y.png",
		"band":       "https://cdn.example.com/z.jpg",
	}, c.Values)
	assert.Equal(t, "acme-corp", c.Site)
}

func TestExtract_FirstOccurrenceWins(t *testing.T) {
	c, err := Extract(`<p data-cms-text="k">one</p><p data-cms-text="k">two</p>`)
	require.NoError(t, err)
	assert.Equal(t, "one", c.Values["k"])
}

func TestSiteResolver(t *testing.T) {
	pages := map[string]string{
		"index.html": `<html data-cms-site="acme"><body></body></html>`,
	}
	loads := 0
	resolver := SiteResolver{
		Home: "index.html",
		Load: func(ctx context.Context, page string) (string, error) {
			loads++
			src, ok := pages[page]
			if !ok {
				return "", errors.ErrPageNotFound(page)
			}
			return src, nil
		},
	}
	ctx := context.Background()

	site, err := resolver.Resolve(ctx, "about.html", `<html><body></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "acme", site)
	assert.Equal(t, 1, loads)

	site, err = resolver.Resolve(ctx, "about.html", `<html data-cms-site="other"></html>`)
	require.NoError(t, err)
	assert.Equal(t, "other", site)
	assert.Equal(t, 1, loads, "own declaration must not consult home")

	site, err = resolver.Resolve(ctx, "index.html", `<html></html>`)
	require.NoError(t, err)
	assert.Empty(t, site)

	delete(pages, "index.html")
	site, err = resolver.Resolve(ctx, "about.html", `<html></html>`)
	require.NoError(t, err)
	assert.Empty(t, site)
}

package publish

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/components"
	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/storage"
	"github.com/conneroisu/pagesmith/internal/styles"
)

const indexPage = `<html data-cms-site="Acme"><head>
<script src="/cms/editor.js"></script>
<link rel="stylesheet" href="/cms/editor.css">
<link data-cms-style="theme" rel="stylesheet" href="/css/theme.css">
</head><body>
<img data-cms-image="hero" src="/images/x.png" class="cms-selected wide" contenteditable="true">
<img data-cms-image="remote" src="https://cdn.example.com/y.png">
<div data-cms-bg="banner" style="color: red; background-image: url('/images/bg.png')"></div>
<span data-cms-text="cta" data-cms-link="/contact">Call</span>
<section data-cms-component="card"><p>stale</p></section>
<div data-cms-editor>toolbar</div>
</body></html>`

const aboutPage = `<html><body>
<img data-cms-image="team" src="images/team.png" srcset="/images/team.png 1x, /images/team@2x.png 2x" draggable="true">
<a href="/old" data-cms-link="/people"><b data-cms-text="more">More</b></a>
</body></html>`

type recorder struct {
	mu       sync.Mutex
	outcomes map[string]error
	runs     int
}

func (r *recorder) ObservePublish(page string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]error)
	}
	r.outcomes[page] = err
}

func (r *recorder) ObservePublishDuration(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newSite(t *testing.T) (*config.Config, *Pipeline, *recorder) {
	t.Helper()
	cfg := config.Default()
	cfg.Site.Root = t.TempDir()
	cfg.Publish.Workers = 2
	cfg.Assets.StaticDirs = append(cfg.Assets.StaticDirs, cfg.Editor.RuntimeDir)

	ctx := context.Background()
	docs := storage.NewDocuments(cfg.PagesPath())
	require.NoError(t, docs.Write(ctx, "index.html", indexPage))
	require.NoError(t, docs.Write(ctx, "about.html", aboutPage))
	require.NoError(t, docs.Write(ctx, "broken.html", "   "))

	store := fragments.NewFileStore(cfg.ComponentsPath(), cfg.StylesPath())
	require.NoError(t, store.Put(ctx, fragments.KindComponent, "card",
		`<section data-cms-component="card" class="card"><p>Fresh</p></section>`))
	require.NoError(t, store.Put(ctx, fragments.KindStyle, "theme", "body{margin:0}"))

	writeFile(t, filepath.Join(cfg.Site.Root, "images", "x.png"), "png")
	writeFile(t, filepath.Join(cfg.Site.Root, "css", "site.css"), "p{}")
	writeFile(t, filepath.Join(cfg.Site.Root, "cms", "editor.js"), "editor()")

	rec := &recorder{}
	p := NewPipeline(cfg, docs,
		components.NewStore(store, components.NewCatalog(), cfg.Components.TransientClasses, nil),
		styles.New(store, nil),
		WithObserver(rec),
	)
	return cfg, p, rec
}

func readPublished(t *testing.T, cfg *config.Config, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.PublishPath(), name))
	require.NoError(t, err)
	return string(data)
}

func TestPublish_Site(t *testing.T) {
	cfg, p, rec := newSite(t)

	report, err := p.Publish(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"about.html", "index.html"}, report.Published)
	require.Contains(t, report.Failed, "broken.html")
	assert.True(t, errors.IsMalformed(report.Failed["broken.html"]))
	assert.False(t, report.OK())
	assert.Equal(t, "acme", report.Site)
	assert.NotEmpty(t, report.RunID)

	index := readPublished(t, cfg, "index.html")
	assert.Contains(t, index, `src="/acme/images/x.png"`)
	assert.Contains(t, index, `src="https://cdn.example.com/y.png"`)
	assert.Contains(t, index, `/acme/images/bg.png`)
	assert.Contains(t, index, `<a href="/contact" style="color: inherit; text-decoration: none"><span>Call</span></a>`)
	assert.Contains(t, index, `<section class="card"><p>Fresh</p></section>`)
	assert.Contains(t, index, `<style>body{margin:0}</style>`)
	assert.Contains(t, index, `class="wide"`)
	assert.NotContains(t, index, "cms")
	assert.NotContains(t, index, "contenteditable")
	assert.NotContains(t, index, "toolbar")

	about := readPublished(t, cfg, "about.html")
	assert.Contains(t, about, `src="/acme/images/team.png"`)
	assert.Contains(t, about, `srcset="/acme/images/team.png 1x, /acme/images/team@2x.png 2x"`)
	assert.Contains(t, about, `<a href="/people" style="color: inherit; text-decoration: none"><b>More</b></a>`)
	assert.NotContains(t, about, "draggable")

	_, err = os.Stat(filepath.Join(cfg.PublishPath(), "broken.html"))
	assert.True(t, os.IsNotExist(err))

	assert.FileExists(t, filepath.Join(cfg.PublishPath(), "images", "x.png"))
	assert.FileExists(t, filepath.Join(cfg.PublishPath(), "acme", "images", "x.png"))
	assert.FileExists(t, filepath.Join(cfg.PublishPath(), "css", "site.css"))
	assert.NoDirExists(t, filepath.Join(cfg.PublishPath(), "cms"))

	m, err := ReadManifest(cfg.PublishPath())
	require.NoError(t, err)
	assert.Equal(t, report.RunID, m.RunID)
	assert.Equal(t, "acme", m.Site)
	assert.Equal(t, []string{"about.html", "index.html"}, m.Pages)
	assert.Contains(t, m.Failed, "broken.html")

	assert.Len(t, rec.outcomes, 3)
	assert.NoError(t, rec.outcomes["index.html"])
	assert.Error(t, rec.outcomes["broken.html"])
	assert.Equal(t, 1, rec.runs)
}

func TestPublish_SelectedPages(t *testing.T) {
	cfg, p, _ := newSite(t)

	report, err := p.Publish(context.Background(), []string{"about"})
	require.NoError(t, err)
	assert.Equal(t, []string{"about.html"}, report.Published)
	assert.True(t, report.OK())
	assert.NoFileExists(t, filepath.Join(cfg.PublishPath(), "index.html"))
}

func TestPublish_MissingPage(t *testing.T) {
	_, p, _ := newSite(t)

	report, err := p.Publish(context.Background(), []string{"nope.html"})
	require.NoError(t, err)
	require.Contains(t, report.Failed, "nope.html")
	assert.True(t, errors.IsNotFound(report.Failed["nope.html"]))
}

func TestRender_KeepMarkers(t *testing.T) {
	cfg, p, _ := newSite(t)
	cfg.Publish.KeepMarkers = true

	out, err := p.Render(context.Background(),
		`<html><body><p data-cms-text="a" class="cms-hover" contenteditable>x</p><div data-cms-editor></div></body></html>`, "")
	require.NoError(t, err)
	assert.Contains(t, out, `<p data-cms-text="a">x</p>`)
	assert.NotContains(t, out, "data-cms-editor")
}

func TestPrefixURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/images/x.png", "/acme/images/x.png"},
		{"images/x.png", "/acme/images/x.png"},
		{"./images/x.png", "/acme/images/x.png"},
		{"/acme/images/x.png", "/acme/images/x.png"},
		{"https://cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"//cdn.example.com/x.png", "//cdn.example.com/x.png"},
		{"data:image/png;base64,AAA", "data:image/png;base64,AAA"},
		{"#frag", "#frag"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, prefixURL("acme", tt.in))
		})
	}
	assert.Equal(t, "/images/x.png", prefixURL("", "/images/x.png"))
}

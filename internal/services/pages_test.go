package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/binding"
	"github.com/conneroisu/pagesmith/internal/components"
	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/keys"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/publish"
	"github.com/conneroisu/pagesmith/internal/storage"
	"github.com/conneroisu/pagesmith/internal/styles"
)

type fixture struct {
	cfg    *config.Config
	docs   *storage.Documents
	store  fragments.Store
	pages  *PageService
	styles *styles.Materializer
	comps  *components.Store
}

func newFixture(t *testing.T, writeBack bool) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Site.Root = t.TempDir()

	f := &fixture{
		cfg:   cfg,
		docs:  storage.NewDocuments(cfg.PagesPath()),
		store: fragments.NewFileStore(cfg.ComponentsPath(), cfg.StylesPath()),
	}
	f.comps = components.NewStore(f.store, components.NewCatalog(), cfg.Components.TransientClasses, nil)
	f.styles = styles.New(f.store, nil)
	f.pages = NewPageService(PageServiceConfig{
		Documents:  f.docs,
		Merge:      merge.NewEngine(keys.NewAllocator(), nil),
		Binding:    binding.NewEngine(binding.NewResolver(), nil),
		Components: f.comps,
		Styles:     f.styles,
		Home:       cfg.Site.Home,
		WriteBack:  writeBack,
	})
	return f
}

func (f *fixture) put(t *testing.T, page, src string) {
	t.Helper()
	require.NoError(t, f.docs.Write(context.Background(), page, src))
}

func (f *fixture) get(t *testing.T, page string) string {
	t.Helper()
	src, err := f.docs.Read(context.Background(), page)
	require.NoError(t, err)
	return src
}

const teamPage = `<html><head><meta name="cms-service" data-alias="team" data-inline='[{"name":"Ann"},{"name":"Bo"}]'></head>` +
	`<body><ul><li data-cms-service="team" data-cms-template><span data-cms-bind-text="name">x</span></li></ul></body></html>`

func TestRead_BindsAndWritesBack(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "team.html", teamPage)

	res, err := f.pages.Read(context.Background(), "team")
	require.NoError(t, err)
	assert.Equal(t, "team.html", res.Page)
	assert.Contains(t, res.HTML, `<li><span>Ann</span></li><li><span>Bo</span></li>`)
	assert.Contains(t, f.get(t, "team.html"), "Bo")
}

func TestRead_WithoutWriteBack(t *testing.T) {
	f := newFixture(t, false)
	f.put(t, "team.html", teamPage)

	res, err := f.pages.Read(context.Background(), "team")
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "Ann")
	assert.Equal(t, teamPage, f.get(t, "team.html"))
}

func TestRead_Errors(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "empty.html", "just words")

	_, err := f.pages.Read(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))

	_, err = f.pages.Read(context.Background(), "empty")
	assert.True(t, errors.IsMalformed(err))

	_, err = f.pages.Read(context.Background(), "../etc/passwd")
	assert.True(t, errors.IsSecurityError(err))
}

func TestSave_TextEdit(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", `<html data-cms-site="Acme"><body>
  <p data-cms-text="hero.title">Old</p>
  <footer>  keep   this </footer>
</body></html>`)

	res, err := f.pages.Save(context.Background(), "index", &merge.EditRequest{Key: "hero.title", Type: "text", Value: "New"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.True(t, res.Changed)
	assert.Equal(t, merge.StrategyStructural, res.Strategy)
	assert.Equal(t, "New", res.Content.Values["hero.title"])
	assert.Equal(t, "acme", res.Content.Site)

	assert.Equal(t, `<html data-cms-site="Acme"><body>
  <p data-cms-text="hero.title">New</p>
  <footer>  keep   this </footer>
</body></html>`, f.get(t, "index.html"))
}

func TestSave_KeyCollision(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", `<body><h1 data-cms-text="hero.title">A</h1><h2>B</h2></body>`)

	res, err := f.pages.Save(context.Background(), "index.html",
		&merge.EditRequest{Key: "hero.title", Type: "text", Value: "B", Path: "/body/h2"})
	require.NoError(t, err)
	assert.True(t, res.Renamed)
	assert.Equal(t, "hero.title-2", res.Key)
	assert.Contains(t, f.get(t, "index.html"), `<h2 data-cms-text="hero.title-2">B</h2>`)
}

func TestSave_CanonicalComponentSyncs(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", `<body><div class="card cms-selected" data-cms-component="card" data-cms-component-source="true"><h3 data-cms-text="card.title">Old</h3></div>
<div data-cms-component="card"><h3>stale</h3></div></body>`)

	res, err := f.pages.Save(context.Background(), "index", &merge.EditRequest{Key: "card.title", Type: "text", Value: "New"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)

	stored := f.get(t, "index.html")
	assert.Contains(t, stored, `<div class="card cms-selected" data-cms-component="card"><h3 data-cms-text="card.title">New</h3></div>`)
	assert.NotContains(t, stored, "stale")

	fragment, ok, err := f.store.Get(context.Background(), fragments.KindComponent, "card")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `<div class="card" data-cms-component="card"><h3 data-cms-text="card.title">New</h3></div>`, fragment)

	entry, ok := f.comps.Catalog().Get("card")
	require.True(t, ok)
	assert.Len(t, entry.Instances, 2)
}

func TestSave_KeyEditInsideSyncedComponent(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", `<body><div data-cms-component="card"><h2 data-cms-text="card.title">Old</h2></div>
<div data-cms-component="card" data-cms-component-source="true"><h2 data-cms-text="card.title">Old</h2></div></body>`)

	res, err := f.pages.Save(context.Background(), "index", &merge.EditRequest{Key: "card.title", Type: "text", Value: "New"})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, "New", res.Content.Values["card.title"])

	stored := f.get(t, "index.html")
	assert.Equal(t, 2, strings.Count(stored, `<h2 data-cms-text="card.title">New</h2>`))
	assert.NotContains(t, stored, "Old")
}

// failingDocuments rejects every page write.
type failingDocuments struct {
	DocumentStore
}

func (failingDocuments) Write(context.Context, string, string) error {
	return errors.NewIOError(errors.ErrCodeStorage, "disk full", nil)
}

func TestSave_FailedPageWriteLeavesFragmentsUntouched(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	src := `<html><head><style data-cms-style="theme">p{color:red}</style></head>` +
		`<body><div data-cms-component="card" data-cms-component-source="true"><h3 data-cms-text="card.title">Old</h3></div></body></html>`
	f.put(t, "index.html", src)
	_, err := f.comps.Persist(ctx, "index.html", src)
	require.NoError(t, err)

	pages := NewPageService(PageServiceConfig{
		Documents:  failingDocuments{f.docs},
		Fragments:  f.store,
		Merge:      merge.NewEngine(keys.NewAllocator(), nil),
		Components: f.comps,
		Styles:     f.styles,
		Home:       f.cfg.Site.Home,
	})
	_, err = pages.Save(ctx, "index", &merge.EditRequest{Key: "card.title", Type: "text", Value: "New"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStorage, errors.CodeOf(err))

	fragment, ok, err := f.store.Get(ctx, fragments.KindComponent, "card")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, fragment, ">Old</h3>")

	_, ok, err = f.store.Get(ctx, fragments.KindStyle, "theme")
	require.NoError(t, err)
	assert.False(t, ok, "a stylesheet first seen in the failed save is not stored")

	entry, ok := f.comps.Catalog().Get("card")
	require.True(t, ok)
	assert.Contains(t, entry.Definition.Fragment, ">Old</h3>")
	assert.Equal(t, src, f.get(t, "index.html"))
}

func TestSave_DeleteAndMissingTarget(t *testing.T) {
	f := newFixture(t, true)
	src := `<body><p data-cms-text="hero.title">Hi</p><p>x</p></body>`
	f.put(t, "index.html", src)
	ctx := context.Background()

	res, err := f.pages.Save(ctx, "index", &merge.EditRequest{Key: "nope", Type: "text", Delete: true})
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, src, f.get(t, "index.html"))

	res, err = f.pages.Save(ctx, "index", &merge.EditRequest{Key: "hero.title", Type: "text", Delete: true})
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.NotContains(t, res.Content.Values, "hero.title")
	assert.Equal(t, `<body><p>x</p></body>`, f.get(t, "index.html"))

	_, err = f.pages.Save(ctx, "index", &merge.EditRequest{Type: "text", Delete: true})
	assert.True(t, errors.IsValidation(err))
}

func TestSave_MalformedStoredDocumentIsNotWritten(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", "plain text only")

	_, err := f.pages.Save(context.Background(), "index", &merge.EditRequest{Key: "a", Type: "text", Value: "b"})
	assert.True(t, errors.IsMalformed(err))
	assert.Equal(t, "plain text only", f.get(t, "index.html"))
}

func TestSave_NewPageFromBody(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.pages.Save(ctx, "fresh", &merge.EditRequest{Key: "a", Type: "text", Value: "b"})
	assert.True(t, errors.IsNotFound(err))

	body := `<body><p data-cms-text="a">b</p></body>`
	res, err := f.pages.Save(ctx, "fresh", &merge.EditRequest{Type: "text", Body: body})
	require.NoError(t, err)
	assert.Equal(t, merge.StrategyLayout, res.Strategy)
	assert.Equal(t, body, f.get(t, "fresh.html"))
}

func TestCreateAndList(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	res, err := f.pages.Create(ctx, "About Us", `<body><style data-cms-style="theme">p{color:red}</style><p data-cms-text="t">Hi</p></body>`)
	require.NoError(t, err)
	assert.Equal(t, "about-us.html", res.Page)
	assert.Equal(t, "Hi", res.Content.Values["t"])

	css, ok, err := f.store.Get(ctx, fragments.KindStyle, "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p{color:red}", css)

	_, err = f.pages.Create(ctx, "about-us", `<p>again</p>`)
	assert.True(t, errors.IsValidation(err))

	_, err = f.pages.Create(ctx, "blank", "   ")
	assert.True(t, errors.IsMalformed(err))

	pages, err := f.pages.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"about-us.html"}, pages)
}

func TestSetCanonicalAndSyncComponents(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.put(t, "a.html", `<body><div data-cms-component="c">one</div><div data-cms-component="c">two</div></body>`)
	f.put(t, "b.html", `<body><div data-cms-component="c">three</div></body>`)

	res, err := f.pages.SetCanonical(ctx, "a", "/body/div[2]", "c")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 2, strings.Count(f.get(t, "a.html"), ">two</div>"))

	res, err = f.pages.SetCanonical(ctx, "a", "/body/section", "c")
	require.NoError(t, err)
	assert.False(t, res.Matched)

	synced, err := f.pages.SyncComponents(ctx)
	require.NoError(t, err)
	assert.Empty(t, synced, "instances already match their canonical copy")

	fragment, ok, err := f.store.Get(ctx, fragments.KindComponent, "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, fragment, ">two</div>", "a lone unflagged holder does not redefine the component")

	read, err := f.pages.Read(ctx, "b")
	require.NoError(t, err)
	assert.Contains(t, read.HTML, ">two</div>", "stored fragment wins on read")
}

func TestPublishService(t *testing.T) {
	f := newFixture(t, true)
	f.put(t, "index.html", `<html data-cms-site="acme"><body><img data-cms-image="x" src="/images/x.png"></body></html>`)

	svc := NewPublishService(publish.NewPipeline(f.cfg, f.docs, f.comps, f.styles), nil)
	assert.Nil(t, svc.Last())

	require.NoError(t, svc.PublishAll(context.Background()))
	report := svc.Last()
	require.NotNil(t, report)
	assert.Equal(t, []string{"index.html"}, report.Published)
}

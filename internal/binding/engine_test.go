package binding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/markup"
)

func TestApply_ArrayTemplate(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="team" data-inline='[{"name":"Ann"},{"name":"Bo"}]'></head>
<body><ul><li data-cms-service="team" data-cms-template><span data-cms-bind-text="name">placeholder</span></li></ul></body></html>`

	e := NewEngine(NewResolver(), nil)
	ctx := context.Background()

	out, changed, err := e.ApplySource(ctx, src)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, out, `<ul><li><span>Ann</span></li><li><span>Bo</span></li></ul>`)
	assert.NotContains(t, out, markup.AttrService)
	assert.NotContains(t, out, markup.AttrTemplate)
	assert.NotContains(t, out, markup.AttrBindText)

	again, changed, err := e.ApplySource(ctx, out)
	require.NoError(t, err)
	assert.False(t, changed, "materialized copies are not expanded again")
	assert.Equal(t, out, again)
}

func TestApply_Scalar(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="site" data-inline='{"title":"Hello","hero":"/h.png","logo":"/l.png","stats":{"count":3}}'></head>
<body><div data-cms-service="site">
<h1 data-cms-bind-text="title">x</h1>
<div data-cms-bind-bg="hero" style="color: red"></div>
<img data-cms-bind-image="logo" src="/old.png">
<span data-cms-bind-text="stats.count">0</span>
<p data-cms-bind-text="missing">kept</p>
</div></body></html>`

	e := NewEngine(NewResolver(), nil)
	ctx := context.Background()

	out, changed, err := e.ApplySource(ctx, src)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, out, `<h1 data-cms-bind-text="title">Hello</h1>`)
	assert.Contains(t, out, `src="/l.png"`)
	assert.Contains(t, out, `/h.png`)
	assert.Contains(t, out, `<span data-cms-bind-text="stats.count">3</span>`)
	assert.Contains(t, out, `<p data-cms-bind-text="missing">kept</p>`)
	assert.Contains(t, out, `data-cms-service="site"`, "scalar bindings stay live")

	_, changed, err = e.ApplySource(ctx, out)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApply_DiscriminatedGroups(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="team" data-inline='[{"type":"lead","name":"A"},{"type":"member","name":"B"},{"type":"member","name":"C"}]'></head>
<body><section data-cms-service="team"><div data-cms-template="lead"><b data-cms-bind-text="name"></b></div><div data-cms-template="member"><i data-cms-bind-text="name"></i></div></section></body></html>`

	out, changed, err := NewEngine(NewResolver(), nil).ApplySource(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, out, `<section><div><b>A</b></div><div><i>B</i></div><div><i>C</i></div></section>`)
}

func TestApply_ArrayWithoutWrapperBindsFirstItem(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="posts" data-inline='[{"title":"First"},{"title":"Second"}]'></head>
<body><article data-cms-service="posts"><h2 data-cms-bind-text="title"></h2></article></body></html>`

	out, _, err := NewEngine(NewResolver(), nil).ApplySource(context.Background(), src)
	require.NoError(t, err)
	assert.Contains(t, out, `>First</h2>`)
	assert.NotContains(t, out, "Second")
}

func TestApply_KeepsWhitespaceBetweenCopies(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="t" data-inline='[{"n":"1"},{"n":"2"}]'></head><body><ul>
  <li data-cms-service="t" data-cms-template data-cms-bind-text="n"></li>
</ul></body></html>`

	out, _, err := NewEngine(NewResolver(), nil).ApplySource(context.Background(), src)
	require.NoError(t, err)
	assert.Contains(t, out, "<ul>\n  <li>1</li>\n  <li>2</li>\n</ul>")
}

func TestApply_UnresolvedSourceLeavesDocument(t *testing.T) {
	src := `<html><head><meta name="cms-service" data-alias="x" data-inline='not json'></head><body><p data-cms-service="x" data-cms-bind-text="a">keep</p></body></html>`

	out, changed, err := NewEngine(NewResolver(), nil).ApplySource(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, src, out)
}

func TestDiscover(t *testing.T) {
	doc, err := markup.Parse(`<head>
<meta name="cms-service" data-alias="team" data-method="post" data-url=" https://api.example.com/team ">
<meta name="cms-service" data-alias="site" data-inline='{"a":1}'>
<meta name="description" content="x">
<meta name="cms-service" data-alias="team" data-url="https://api.example.com/v2/team">
<meta name="cms-service" data-url="https://no-alias">
</head>`)
	require.NoError(t, err)

	services := Discover(doc)
	assert.Equal(t, []Service{
		{Alias: "team", Method: "GET", URL: "https://api.example.com/v2/team"},
		{Alias: "site", Method: "GET", Inline: `{"a":1}`},
	}, services)
}

func TestLookup(t *testing.T) {
	data := map[string]any{
		"site": map[string]any{
			"title": "T",
			"links": []any{map[string]any{"href": "/a"}},
		},
		"flat": "F",
	}

	tests := []struct {
		alias, key string
		want       any
		ok         bool
	}{
		{"site", "title", "T", true},
		{"site", "links.0.href", "/a", true},
		{"other", "site.title", "T", true},
		{"site", "flat", "F", true},
		{"site", "links.7.href", nil, false},
		{"site", "missing", nil, false},
		{"site", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.alias+"/"+tt.key, func(t *testing.T) {
			got, ok := Lookup(data, tt.alias, tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "3", Display(float64(3)))
	assert.Equal(t, "2.5", Display(2.5))
	assert.Equal(t, "true", Display(true))
	assert.Equal(t, `{"a":1}`, strings.TrimSpace(Display(map[string]any{"a": float64(1)})))
}

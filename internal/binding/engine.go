package binding

import (
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
)

// TypeField is the item field a template group's discriminator is matched
// against.
const TypeField = "type"

// Engine binds resolved data into documents.
type Engine struct {
	resolver *Resolver
	logger   logging.Logger
}

// NewEngine creates an engine. A nil resolver gets the defaults.
func NewEngine(resolver *Resolver, logger logging.Logger) *Engine {
	if resolver == nil {
		resolver = NewResolver(WithLogger(logger))
	}
	return &Engine{resolver: resolver, logger: logging.OrNop(logger).WithComponent("binding")}
}

// ApplySource binds src and renders the result. When nothing changed src is
// returned as is.
func (e *Engine) ApplySource(ctx context.Context, src string) (string, bool, error) {
	doc, err := markup.Parse(src)
	if err != nil {
		return "", false, errors.ErrMalformedDocument("", err)
	}
	changed := e.Apply(ctx, doc)
	if !changed {
		return src, false, nil
	}
	out, err := markup.Render(doc)
	if err != nil {
		return "", false, errors.NewInternalError(errors.ErrCodeInternalError, "cannot render bound document", err)
	}
	return out, true, nil
}

// Apply resolves every declared data source of the tree and rewrites the
// elements bound to them. It reports whether the tree changed.
func (e *Engine) Apply(ctx context.Context, root *html.Node) bool {
	services := Discover(root)
	if len(services) == 0 {
		return false
	}

	data := make(map[string]any, len(services))
	for _, svc := range services {
		if v, ok := e.resolver.Resolve(ctx, svc); ok {
			data[svc.Alias] = v
		}
	}

	b := &binder{data: data}
	for _, n := range markup.FindAllByAttr(root, markup.AttrService) {
		if !markup.Attached(n, root) || !markup.HasAttr(n, markup.AttrService) {
			continue
		}
		raw, _ := markup.GetAttr(n, markup.AttrService)
		alias := strings.TrimSpace(raw)
		v, ok := data[alias]
		if !ok {
			continue
		}

		items, isArray := v.([]any)
		switch {
		case isArray && markup.HasAttr(n, markup.AttrTemplate):
			b.expand(n, alias, filterItems(items, discriminator(n)))
		case isArray:
			groups := templateGroups(n)
			if len(groups) == 0 {
				if len(items) > 0 {
					b.bindTree(n, alias, b.scope(alias, items[0]))
				}
				continue
			}
			for _, g := range groups {
				b.expand(g, alias, filterItems(items, discriminator(g)))
			}
			b.strip(n, false)
		default:
			b.bindTree(n, alias, data)
		}
	}

	if b.changed {
		e.logger.Debug(ctx, "document bound", "services", len(services))
	}
	return b.changed
}

type binder struct {
	data    map[string]any
	changed bool
}

// scope returns the lookup data with alias pointing at item.
func (b *binder) scope(alias string, item any) map[string]any {
	s := make(map[string]any, len(b.data)+1)
	for k, v := range b.data {
		s[k] = v
	}
	s[alias] = item
	return s
}

func discriminator(n *html.Node) string {
	v, _ := markup.GetAttr(n, markup.AttrTemplate)
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "true") {
		return ""
	}
	return v
}

func filterItems(items []any, kind string) []any {
	if kind == "" {
		return items
	}
	var out []any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok && Display(m[TypeField]) == kind {
			out = append(out, item)
		}
	}
	return out
}

// templateGroups returns the outermost template wrappers below n that are
// not inside a nested data-source scope.
func templateGroups(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if markup.HasAttr(c, markup.AttrTemplate) {
				out = append(out, c)
				continue
			}
			if markup.HasAttr(c, markup.AttrService) {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// expand binds the wrapper to the first item and inserts one bound copy per
// remaining item after it. Every materialized copy loses its markers. An
// empty item list leaves the wrapper alone.
func (b *binder) expand(wrapper *html.Node, alias string, items []any) {
	if len(items) == 0 {
		return
	}
	tmpl := markup.Clone(wrapper)

	var sep *html.Node
	if prev := wrapper.PrevSibling; prev != nil && prev.Type == html.TextNode && strings.TrimSpace(prev.Data) == "" {
		sep = prev
	}

	b.bindTree(wrapper, alias, b.scope(alias, items[0]))
	b.strip(wrapper, true)

	last := wrapper
	for _, item := range items[1:] {
		c := markup.Clone(tmpl)
		b.bindTree(c, alias, b.scope(alias, item))
		b.strip(c, true)
		if sep != nil {
			ws := markup.Clone(sep)
			markup.InsertAfter(last, ws)
			last = ws
		}
		markup.InsertAfter(last, c)
		last = c
	}
	b.changed = true
}

// strip removes binding markers from n, and from its subtree when deep.
func (b *binder) strip(n *html.Node, deep bool) {
	targets := []*html.Node{n}
	if deep {
		targets = markup.FindAll(n, func(*html.Node) bool { return true })
	}
	for _, t := range targets {
		before := len(t.Attr)
		markup.RemoveAttr(t, markup.BindingAttrs...)
		if len(t.Attr) != before {
			b.changed = true
		}
	}
}

// bindTree applies text, image and background bindings in n's subtree
// without expanding anything. Nested scopes of other aliases are skipped.
func (b *binder) bindTree(n *html.Node, alias string, scope map[string]any) {
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode {
			if cur != n {
				if other, ok := markup.GetAttr(cur, markup.AttrService); ok && strings.TrimSpace(other) != alias {
					return
				}
			}
			if b.bindElement(cur, alias, scope) {
				return
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
}

// bindElement applies the bindings of one element. It reports whether the
// element's children were replaced.
func (b *binder) bindElement(n *html.Node, alias string, scope map[string]any) bool {
	replaced := false
	if key, ok := markup.GetAttr(n, markup.AttrBindText); ok {
		if v, found := Lookup(scope, alias, key); found {
			text := Display(v)
			if markup.TextContent(n) != text {
				markup.SetText(n, text)
				b.changed = true
			}
			replaced = true
		}
	}
	if key, ok := markup.GetAttr(n, markup.AttrBindImage); ok {
		if v, found := Lookup(scope, alias, key); found {
			url := Display(v)
			if n.Data == "img" || n.Data == "source" || markup.HasAttr(n, "src") {
				if cur, _ := markup.GetAttr(n, "src"); cur != url {
					markup.SetAttr(n, "src", url)
					b.changed = true
				}
			} else {
				b.setBackground(n, url)
			}
		}
	}
	if key, ok := markup.GetAttr(n, markup.AttrBindBackground); ok {
		if v, found := Lookup(scope, alias, key); found {
			b.setBackground(n, Display(v))
		}
	}
	return replaced
}

func (b *binder) setBackground(n *html.Node, url string) {
	style, _ := markup.GetAttr(n, "style")
	if markup.BackgroundURL(style) == url {
		return
	}
	markup.SetAttr(n, "style", markup.SetBackgroundImage(style, url))
	b.changed = true
}

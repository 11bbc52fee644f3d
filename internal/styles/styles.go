// Package styles swaps style slots for their stored stylesheets.
package styles

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Materializer reads and writes stylesheets in a fragment store.
type Materializer struct {
	store  fragments.Store
	logger logging.Logger
}

// New creates a materializer over store.
func New(store fragments.Store, logger logging.Logger) *Materializer {
	return &Materializer{store: store, logger: logging.OrNop(logger).WithComponent("styles")}
}

// Fragments returns the backing fragment store.
func (m *Materializer) Fragments() fragments.Store {
	return m.store
}

// Save stores css under id.
func (m *Materializer) Save(ctx context.Context, id, css string) error {
	return m.store.Put(ctx, fragments.KindStyle, id, css)
}

// Materialize replaces style slots in src and renders the result.
func (m *Materializer) Materialize(ctx context.Context, src string) (string, error) {
	doc, err := markup.Parse(src)
	if err != nil {
		return "", errors.ErrMalformedDocument("", err)
	}
	if _, err := m.MaterializeNode(ctx, doc); err != nil {
		return "", err
	}
	return markup.Render(doc)
}

// MaterializeNode replaces every <style> or <link> carrying data-cms-style
// with a <style> element holding the stored stylesheet. Slots without a
// stored sheet are left alone.
func (m *Materializer) MaterializeNode(ctx context.Context, root *html.Node) (int, error) {
	replaced := 0
	for _, n := range markup.FindAllByAttr(root, markup.AttrStyle) {
		if n.Data != "style" && n.Data != "link" {
			continue
		}
		raw, _ := markup.GetAttr(n, markup.AttrStyle)
		id, err := sanitize.ComponentID(raw)
		if err != nil {
			continue
		}
		css, ok, err := m.store.Get(ctx, fragments.KindStyle, id)
		if err != nil {
			return replaced, err
		}
		if !ok {
			m.logger.Debug(ctx, "no stored stylesheet", "id", id)
			continue
		}

		el := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Style,
			Data:     "style",
			Attr:     []html.Attribute{{Key: markup.AttrStyle, Val: id}},
		}
		el.AppendChild(&html.Node{Type: html.TextNode, Data: css})
		markup.Replace(n, el)
		replaced++
	}
	return replaced, nil
}

// Capture stores the body of every inline <style data-cms-style> in src so
// edits made to a style slot survive the next materialization. It returns
// the ids written.
func (m *Materializer) Capture(ctx context.Context, src string) ([]string, error) {
	b := fragments.NewBatch(m.store)
	ids, err := m.Stage(ctx, b, src)
	if err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Stage stages in b the inline style slots of src that differ from the
// stored sheets and returns their ids.
func (m *Materializer) Stage(ctx context.Context, b *fragments.Batch, src string) ([]string, error) {
	ix, err := markup.Scan(src)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	var staged []string
	for _, e := range ix.Elements {
		raw, ok := e.Attr(markup.AttrStyle)
		if !ok || e.Tag != "style" {
			continue
		}
		css := strings.TrimSpace(ix.Inner(e))
		if css == "" {
			continue
		}
		id, err := sanitize.ComponentID(raw)
		if err != nil {
			continue
		}
		current, found, err := m.store.Get(ctx, fragments.KindStyle, id)
		if err != nil {
			return nil, err
		}
		if found && current == css {
			continue
		}
		b.Put(fragments.KindStyle, id, css)
		staged = append(staged, id)
	}
	return staged, nil
}

// Package components keeps reusable fragments in step with the documents
// that use them. Each component id has at most one canonical element per
// document; every other element carrying the id is a replacement target
// whose subtree is overwritten from the canonical fragment.
package components

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Store persists canonical fragments and materializes them into documents.
type Store struct {
	fragments fragments.Store
	catalog   *Catalog
	transient []string
	logger    logging.Logger
}

// NewStore creates a component store. transient lists editor classes that
// never reach a stored fragment.
func NewStore(store fragments.Store, catalog *Catalog, transient []string, logger logging.Logger) *Store {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Store{
		fragments: store,
		catalog:   catalog,
		transient: transient,
		logger:    logging.OrNop(logger).WithComponent("components"),
	}
}

// Catalog returns the store's catalog.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// IsCanonical reports whether an indexed element carries the canonical flag.
func IsCanonical(e *markup.Element) bool {
	return e.IsCanonical()
}

// holders groups the component elements of ix by sanitized id, in document
// order.
func holders(ix *markup.Index) map[string][]*markup.Element {
	out := make(map[string][]*markup.Element)
	for _, e := range ix.Elements {
		raw, ok := e.Attr(markup.AttrComponent)
		if !ok {
			continue
		}
		id, err := sanitize.ComponentID(raw)
		if err != nil {
			continue
		}
		out[id] = append(out[id], e)
	}
	return out
}

func canonicalElement(elems []*markup.Element) *markup.Element {
	for _, e := range elems {
		if IsCanonical(e) {
			return e
		}
	}
	return nil
}

// definingElement picks the element a document defines id with: the
// canonical holder, or the only holder when none is canonical.
func definingElement(elems []*markup.Element) *markup.Element {
	if e := canonicalElement(elems); e != nil {
		return e
	}
	if len(elems) == 1 {
		return elems[0]
	}
	return nil
}

// Fragment returns the stored form of e: its source with transient classes
// removed and the canonical flag dropped.
func (s *Store) Fragment(ix *markup.Index, e *markup.Element) string {
	outer := ix.Outer(e)
	sub, err := markup.Scan(outer)
	if err != nil || len(sub.Elements) == 0 {
		return outer
	}

	var splices []markup.Splice
	for i, el := range sub.Elements {
		attrs := withoutClasses(el.Attrs, s.transient)
		classesChanged := !markup.SameAttrs(attrs, el.Attrs)
		if i == 0 && el.HasAttr(markup.AttrComponentSource) {
			if classesChanged {
				splices = append(splices, markup.StartTagSplice(el, markup.WithoutAttr(attrs, markup.AttrComponentSource)))
			} else {
				splices = append(splices, sub.DropAttrSplice(el, markup.AttrComponentSource))
			}
			continue
		}
		if classesChanged {
			splices = append(splices, markup.StartTagSplice(el, attrs))
		}
	}
	return sub.Apply(splices...)
}

func withoutClasses(attrs []html.Attribute, classes []string) []html.Attribute {
	if len(classes) == 0 {
		return attrs
	}
	n := &html.Node{Type: html.ElementNode, Attr: append([]html.Attribute(nil), attrs...)}
	markup.RemoveClasses(n, classes)
	return n.Attr
}

// Update is the staged result of persisting one page's components.
type Update struct {
	Page      string
	Changed   []*Definition
	Instances map[string][]InstanceLocation
}

// IDs returns the ids whose stored fragment changes.
func (u *Update) IDs() []string {
	ids := make([]string, 0, len(u.Changed))
	for _, def := range u.Changed {
		ids = append(ids, def.ID)
	}
	return ids
}

// Stage computes the fragment of the defining element of every component
// id in doc and stages the ones that differ from the store in b. Nothing is
// written and the catalog is untouched until b commits and Apply runs.
func (s *Store) Stage(ctx context.Context, b *fragments.Batch, page, doc string) (*Update, error) {
	return s.stage(ctx, b, page, doc, definingElement)
}

// StageCanonical is Stage restricted to canonical holders. A lone holder
// without the flag only records its instance.
func (s *Store) StageCanonical(ctx context.Context, b *fragments.Batch, page, doc string) (*Update, error) {
	return s.stage(ctx, b, page, doc, canonicalElement)
}

func (s *Store) stage(ctx context.Context, b *fragments.Batch, page, doc string, pick func([]*markup.Element) *markup.Element) (*Update, error) {
	ix, err := markup.Scan(doc)
	if err != nil {
		return nil, errors.ErrMalformedDocument(page, err)
	}

	byID := holders(ix)
	u := &Update{Page: page, Instances: make(map[string][]InstanceLocation, len(byID))}
	for id, elems := range byID {
		for _, e := range elems {
			u.Instances[id] = append(u.Instances[id], InstanceLocation{Page: page, Path: markup.PathOf(e), Canonical: IsCanonical(e)})
		}

		def := pick(elems)
		if def == nil {
			continue
		}
		fragment := s.Fragment(ix, def)

		stored, ok, err := s.fragments.Get(ctx, fragments.KindComponent, id)
		if err != nil {
			return nil, err
		}
		if ok && stored == fragment {
			continue
		}
		b.Put(fragments.KindComponent, id, fragment)
		u.Changed = append(u.Changed, &Definition{ID: id, Fragment: fragment, SourcePage: page, UpdatedAt: time.Now()})
	}
	return u, nil
}

// Apply records a committed update in the catalog.
func (s *Store) Apply(ctx context.Context, u *Update) {
	for _, def := range u.Changed {
		s.catalog.Define(def)
		s.logger.Debug(ctx, "component persisted", "id", def.ID, "page", u.Page)
	}
	s.catalog.Track(u.Page, u.Instances)
}

// Persist stages, commits and applies the components of doc in one step.
// It returns the ids whose stored fragment changed.
func (s *Store) Persist(ctx context.Context, page, doc string) ([]string, error) {
	b := fragments.NewBatch(s.fragments)
	u, err := s.Stage(ctx, b, page, doc)
	if err != nil {
		return nil, err
	}
	if err := b.Commit(ctx); err != nil {
		return nil, err
	}
	s.Apply(ctx, u)
	return u.IDs(), nil
}

// Fragments returns the backing fragment store.
func (s *Store) Fragments() fragments.Store {
	return s.fragments
}

// Materialize replaces every element carrying a component id in src with
// its stored fragment and renders the result.
func (s *Store) Materialize(ctx context.Context, src string) (string, error) {
	doc, err := markup.Parse(src)
	if err != nil {
		return "", errors.ErrMalformedDocument("", err)
	}
	if _, err := s.MaterializeNode(ctx, doc); err != nil {
		return "", err
	}
	return markup.Render(doc)
}

// MaterializeNode replaces component elements in the tree rooted at root.
// The inserted copy loses the canonical flag and carries the id again.
// Ids without a stored fragment are left alone. It returns the number of
// replaced elements.
func (s *Store) MaterializeNode(ctx context.Context, root *html.Node) (int, error) {
	cache := make(map[string]*string)
	replaced := 0

	for _, n := range markup.FindAllByAttr(root, markup.AttrComponent) {
		if !markup.Attached(n, root) {
			continue
		}
		raw, _ := markup.GetAttr(n, markup.AttrComponent)
		id, err := sanitize.ComponentID(raw)
		if err != nil {
			continue
		}

		body, seen := cache[id]
		if !seen {
			stored, ok, err := s.fragments.Get(ctx, fragments.KindComponent, id)
			if err != nil {
				return replaced, err
			}
			if ok {
				body = &stored
			}
			cache[id] = body
		}
		if body == nil {
			continue
		}

		nodes, err := markup.ParseFragment(*body, n.Parent)
		if err != nil {
			s.logger.Warn(ctx, err, "stored component cannot be parsed", "id", id)
			continue
		}
		repl := markup.FirstElement(nodes)
		if repl == nil {
			continue
		}
		markup.RemoveAttr(repl, markup.AttrComponentSource)
		markup.SetAttr(repl, markup.AttrComponent, id)
		markup.Replace(n, repl)
		replaced++
	}
	return replaced, nil
}

// SyncInstances overwrites every non-canonical holder of id in doc with a
// copy of the canonical element's source minus the canonical flag. It
// returns the number of holders that differed. Bytes
// outside the replaced elements are untouched. Without a canonical holder
// doc is returned unchanged.
func SyncInstances(doc, id string) (string, int, error) {
	clean, err := sanitize.ComponentID(id)
	if err != nil {
		return "", 0, err
	}
	ix, err := markup.Scan(doc)
	if err != nil {
		return "", 0, errors.ErrMalformedDocument("", err)
	}

	elems := holders(ix)[clean]
	var canonical *markup.Element
	for _, e := range elems {
		if IsCanonical(e) {
			canonical = e
			break
		}
	}
	if canonical == nil {
		return doc, 0, nil
	}

	clone := markup.DropAttr(ix.Source[canonical.Start:canonical.StartEnd], markup.AttrComponentSource) +
		ix.Source[canonical.StartEnd:canonical.End]

	var splices []markup.Splice
	var targets []*markup.Element
	for _, e := range elems {
		if e == canonical || e.Contains(canonical) || canonical.Contains(e) {
			continue
		}
		nested := false
		for _, t := range targets {
			if t.Contains(e) {
				nested = true
				break
			}
		}
		if nested {
			continue
		}
		targets = append(targets, e)
		if ix.Source[e.Start:e.End] == clone {
			continue
		}
		splices = append(splices, markup.Splice{Start: e.Start, End: e.End, Text: clone})
	}
	return ix.Apply(splices...), len(splices), nil
}

// CanonicalIDs returns the sanitized ids that have a canonical holder in doc.
func CanonicalIDs(doc string) ([]string, error) {
	ix, err := markup.Scan(doc)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	var ids []string
	for id, elems := range holders(ix) {
		for _, e := range elems {
			if IsCanonical(e) {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids, nil
}

// SetCanonical marks the element at path canonical for id and clears the
// flag on every other holder of id. A path that matches nothing leaves doc
// unchanged and reports false.
func SetCanonical(doc, path, id string) (string, bool, error) {
	clean, err := sanitize.ComponentID(id)
	if err != nil {
		return "", false, err
	}
	ix, err := markup.Scan(doc)
	if err != nil {
		return "", false, errors.ErrMalformedDocument("", err)
	}
	target, err := ix.FindByPath(path)
	if err != nil {
		return "", false, errors.NewValidationError(errors.ErrCodeMalformedRequest, err.Error())
	}
	if target == nil {
		return doc, false, nil
	}

	var splices []markup.Splice
	for _, e := range holders(ix)[clean] {
		if e != target && IsCanonical(e) {
			splices = append(splices, ix.DropAttrSplice(e, markup.AttrComponentSource))
		}
	}
	attrs := markup.WithAttr(target.Attrs, markup.AttrComponent, clean)
	attrs = markup.WithAttr(attrs, markup.AttrComponentSource, "true")
	if !markup.SameAttrs(attrs, target.Attrs) {
		splices = append(splices, markup.StartTagSplice(target, attrs))
	}
	return ix.Apply(splices...), true, nil
}

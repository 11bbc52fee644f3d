package merge

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/keys"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// StrategyName identifies a merge strategy.
type StrategyName string

const (
	StrategyExact      StrategyName = "exact"
	StrategyStructural StrategyName = "structural"
	StrategyLayout     StrategyName = "layout"
	StrategyDelete     StrategyName = "delete"
)

// Result is the outcome of one merge.
type Result struct {
	Document string       `json:"-"`
	Strategy StrategyName `json:"strategy"`
	Key      string       `json:"key,omitempty"`
	Renamed  bool         `json:"renamed,omitempty"`
	Matched  bool         `json:"matched"`
	Changed  bool         `json:"changed"`
	Path     string       `json:"path,omitempty"`
}

// Strategy applies an edit request to a document.
type Strategy interface {
	Name() StrategyName
	Apply(doc string, req *EditRequest) (*Result, error)
}

func unmatched(doc string) *Result {
	return &Result{Document: doc}
}

// locate finds the target by path, then by key.
func locate(ix *markup.Index, req *EditRequest) (*markup.Element, error) {
	if path := strings.TrimSpace(req.Path); path != "" {
		e, err := ix.FindByPath(path)
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeMalformedRequest, err.Error())
		}
		if e != nil {
			return e, nil
		}
	}
	return byKey(ix, strings.TrimSpace(req.Key)), nil
}

// byKey returns the element tagged with key. Synced component instances
// repeat the keys of their canonical holder and are overwritten from it on
// save, so the first match outside every such instance wins.
func byKey(ix *markup.Index, key string) *markup.Element {
	matches := ix.FindAllByKey(key)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return matches[0]
	}

	canonical := make(map[string]bool)
	for _, e := range ix.Elements {
		if id, ok := componentID(e); ok && e.IsCanonical() {
			canonical[id] = true
		}
	}
	for _, m := range matches {
		if !shadowed(m, canonical) {
			return m
		}
	}
	return matches[0]
}

// shadowed reports whether e lies inside a non-canonical holder of an id
// that has a canonical holder in the document.
func shadowed(e *markup.Element, canonical map[string]bool) bool {
	for cur := e; cur != nil; cur = cur.Parent {
		id, ok := componentID(cur)
		if !ok {
			continue
		}
		if cur.IsCanonical() {
			return false
		}
		if canonical[id] {
			return true
		}
	}
	return false
}

func componentID(e *markup.Element) (string, bool) {
	raw, ok := e.Attr(markup.AttrComponent)
	if !ok {
		return "", false
	}
	id, err := sanitize.ComponentID(raw)
	return id, err == nil
}

// exactStrategy swaps a verbatim before snippet for the after snippet.
type exactStrategy struct {
	keys *keys.Allocator
}

func (exactStrategy) Name() StrategyName { return StrategyExact }

func (s exactStrategy) Apply(doc string, req *EditRequest) (*Result, error) {
	at := strings.Index(doc, req.Before)
	if req.Before == "" || at < 0 {
		return unmatched(doc), nil
	}

	after := req.After
	res := &Result{Matched: true}

	afterIx, err := markup.Scan(after)
	if err != nil {
		return nil, errors.NewMalformedError(errors.ErrCodeMalformedRequest, "after snippet cannot be parsed", err)
	}
	if len(afterIx.Elements) > 0 {
		// Allocate against the document as it would be without the
		// element being replaced.
		rest := doc[:at] + doc[at+len(req.Before):]
		restIx, err := markup.Scan(rest)
		if err != nil {
			return nil, errors.ErrMalformedDocument("", err)
		}
		session := s.keys.Session(restIx)

		var splices []markup.Splice
		for i, el := range afterIx.Elements {
			attrs := el.Attrs
			for _, kind := range markup.SlotTypes {
				key, ok := el.Attr(kind.Attr())
				if !ok || key == "" {
					continue
				}
				unique, renamed := session.Allocate(key, "")
				if renamed {
					attrs = markup.WithAttr(attrs, kind.Attr(), unique)
				}
				if i == 0 && res.Key == "" {
					res.Key, res.Renamed = unique, renamed
				} else if renamed {
					res.Renamed = true
				}
			}
			if !markup.SameAttrs(attrs, el.Attrs) {
				splices = append(splices, markup.StartTagSplice(el, attrs))
			}
		}
		after = afterIx.Apply(splices...)
	}

	res.Document = doc[:at] + after + doc[at+len(req.Before):]
	res.Changed = res.Document != doc
	if ix, err := markup.Scan(res.Document); err == nil {
		for _, e := range ix.Elements {
			if e.Start == at {
				res.Path = markup.PathOf(e)
				break
			}
		}
	}
	return res, nil
}

// structuralStrategy finds the target element and rewrites its tag and
// value in place.
type structuralStrategy struct {
	keys *keys.Allocator
}

func (structuralStrategy) Name() StrategyName { return StrategyStructural }

func (s structuralStrategy) Apply(doc string, req *EditRequest) (*Result, error) {
	ix, err := markup.Scan(doc)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	e, err := locate(ix, req)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return unmatched(doc), nil
	}
	kind, err := req.SlotType()
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeMalformedRequest, err.Error())
	}

	_, currentKey, _ := e.Slot()
	base := strings.TrimSpace(req.Key)
	if base == "" {
		base = currentKey
	}
	if base == "" {
		base = e.Tag
	}
	key, renamed := s.keys.EnsureUnique(ix, base, currentKey)

	attrs := e.Attrs
	for _, t := range markup.SlotTypes {
		if t != kind {
			attrs = markup.WithoutAttr(attrs, t.Attr())
		}
	}
	attrs = markup.WithAttr(attrs, kind.Attr(), key)

	if req.Link != nil {
		if link := strings.TrimSpace(*req.Link); link != "" {
			attrs = markup.WithAttr(attrs, markup.AttrLink, link)
		} else {
			attrs = markup.WithoutAttr(attrs, markup.AttrLink)
		}
	}

	var splices []markup.Splice
	switch kind {
	case markup.SlotText:
		if !markup.IsVoid(e.Tag) && !e.SelfClosing && strings.TrimSpace(req.Value) != ix.InnerText(e) {
			splices = append(splices, markup.Splice{
				Start: e.StartEnd,
				End:   e.EndStart,
				Text:  html.EscapeString(req.Value),
			})
		}
	case markup.SlotImage:
		if usesSrc(e) {
			if cur, _ := e.Attr("src"); cur != req.Value {
				attrs = markup.WithAttr(attrs, "src", req.Value)
			}
			break
		}
		attrs = withBackground(e, attrs, req.Value)
	case markup.SlotBackground:
		attrs = withBackground(e, attrs, req.Value)
	}

	if !markup.SameAttrs(attrs, e.Attrs) {
		splices = append(splices, markup.StartTagSplice(e, attrs))
	}

	out := ix.Apply(splices...)
	return &Result{
		Document: out,
		Key:      key,
		Renamed:  renamed,
		Matched:  true,
		Changed:  out != doc,
		Path:     markup.PathOf(e),
	}, nil
}

func usesSrc(e *markup.Element) bool {
	switch e.Tag {
	case "img", "source", "video", "audio", "iframe", "embed":
		return true
	}
	return e.HasAttr("src")
}

func withBackground(e *markup.Element, attrs []nethtml.Attribute, url string) []nethtml.Attribute {
	style, _ := e.Attr("style")
	if markup.BackgroundURL(style) == url {
		return attrs
	}
	style = markup.SetBackgroundImage(style, url)
	if style == "" {
		return markup.WithoutAttr(attrs, "style")
	}
	return markup.WithAttr(attrs, "style", style)
}

// layoutStrategy replaces the document with the candidate body.
type layoutStrategy struct{}

func (layoutStrategy) Name() StrategyName { return StrategyLayout }

func (layoutStrategy) Apply(doc string, req *EditRequest) (*Result, error) {
	if req.Body == "" {
		return nil, errors.NewValidationError(errors.ErrCodeMalformedRequest, "layout merge requires a body")
	}
	if _, err := markup.Check(req.Body); err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	return &Result{
		Document: req.Body,
		Matched:  true,
		Changed:  req.Body != doc,
	}, nil
}

// deleteStrategy removes the target element and its subtree.
type deleteStrategy struct{}

func (deleteStrategy) Name() StrategyName { return StrategyDelete }

func (deleteStrategy) Apply(doc string, req *EditRequest) (*Result, error) {
	if strings.TrimSpace(req.Key) == "" && strings.TrimSpace(req.Path) == "" {
		return nil, errors.ErrMissingTarget("delete")
	}
	ix, err := markup.Scan(doc)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	e, err := locate(ix, req)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return unmatched(doc), nil
	}

	_, key, _ := e.Slot()
	out := ix.Apply(markup.Splice{Start: e.Start, End: e.End})
	return &Result{
		Document: out,
		Key:      key,
		Matched:  true,
		Changed:  out != doc,
		Path:     markup.PathOf(e),
	}, nil
}

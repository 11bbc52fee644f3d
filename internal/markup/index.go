package markup

import (
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Element is one element of a source index with the byte spans of its
// start tag [Start, StartEnd), content [StartEnd, EndStart) and end tag
// [EndStart, End). Void, self-closing and implicitly closed elements have an
// empty end tag span.
type Element struct {
	Tag         string
	Attrs       []html.Attribute
	SelfClosing bool

	Start    int
	StartEnd int
	EndStart int
	End      int

	Parent   *Element
	Children []*Element
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the attribute is present.
func (e *Element) HasAttr(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// Slot returns the slot kind and key the element is tagged with. When more
// than one slot attribute is present the first in SlotTypes order wins.
func (e *Element) Slot() (SlotType, string, bool) {
	for _, t := range SlotTypes {
		if key, ok := e.Attr(t.Attr()); ok {
			return t, key, true
		}
	}
	return "", "", false
}

// IsCanonical reports whether e carries the canonical component flag.
func (e *Element) IsCanonical() bool {
	v, ok := e.Attr(AttrComponentSource)
	return ok && !strings.EqualFold(strings.TrimSpace(v), "false")
}

// Contains reports whether other lies inside e's subtree.
func (e *Element) Contains(other *Element) bool {
	for p := other; p != nil; p = p.Parent {
		if p == e {
			return true
		}
	}
	return false
}

// Index is a tokenizer-built element index over a document's source bytes.
type Index struct {
	Source   string
	Root     *Element
	Elements []*Element
}

// autoClosers lists, per open element, the start tags that implicitly close it.
var autoClosers = map[string]map[string]bool{
	"p": setOf("address", "article", "aside", "blockquote", "div", "dl", "fieldset",
		"footer", "form", "h1", "h2", "h3", "h4", "h5", "h6", "header", "hr", "main",
		"nav", "ol", "p", "pre", "section", "table", "ul"),
	"li":     setOf("li"),
	"dt":     setOf("dt", "dd"),
	"dd":     setOf("dt", "dd"),
	"option": setOf("option", "optgroup"),
	"tr":     setOf("tr"),
	"td":     setOf("td", "th", "tr"),
	"th":     setOf("td", "th", "tr"),
}

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Scan tokenizes src and builds its element index.
func Scan(src string) (*Index, error) {
	ix := &Index{
		Source: src,
		Root:   &Element{Start: 0, StartEnd: 0, EndStart: len(src), End: len(src)},
	}

	z := html.NewTokenizer(strings.NewReader(src))
	stack := []*Element{ix.Root}
	off := 0

	closeAt := func(e *Element, at int) {
		e.EndStart = at
		e.End = at
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			break
		}

		start := off
		off += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			var attrs []html.Attribute
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs = append(attrs, html.Attribute{Key: string(k), Val: string(v)})
			}

			for len(stack) > 1 && autoClosers[stack[len(stack)-1].Tag][tag] {
				closeAt(stack[len(stack)-1], start)
				stack = stack[:len(stack)-1]
			}

			parent := stack[len(stack)-1]
			el := &Element{
				Tag:         tag,
				Attrs:       attrs,
				SelfClosing: tt == html.SelfClosingTagToken,
				Start:       start,
				StartEnd:    off,
				Parent:      parent,
			}
			parent.Children = append(parent.Children, el)
			ix.Elements = append(ix.Elements, el)

			if tt == html.SelfClosingTagToken || IsVoid(tag) {
				closeAt(el, off)
				continue
			}
			stack = append(stack, el)

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			match := -1
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Tag == tag {
					match = i
					break
				}
			}
			if match < 0 {
				continue
			}
			for i := len(stack) - 1; i > match; i-- {
				closeAt(stack[i], start)
			}
			stack[match].EndStart = start
			stack[match].End = off
			stack = stack[:match]
		}
	}

	for i := len(stack) - 1; i > 0; i-- {
		closeAt(stack[i], len(src))
	}

	return ix, nil
}

// ErrNoElements is returned by Check for input without a single element.
var ErrNoElements = errors.New("document has no elements")

// Check scans src and rejects input that cannot be a document: empty text,
// NUL bytes, or no elements at all.
func Check(src string) (*Index, error) {
	if strings.TrimSpace(src) == "" {
		return nil, ErrNoElements
	}
	if strings.IndexByte(src, 0) >= 0 {
		return nil, errors.New("document contains NUL bytes")
	}
	ix, err := Scan(src)
	if err != nil {
		return nil, err
	}
	if len(ix.Elements) == 0 {
		return nil, ErrNoElements
	}
	return ix, nil
}

// Outer returns the element's full source.
func (ix *Index) Outer(e *Element) string {
	return ix.Source[e.Start:e.End]
}

// Inner returns the element's content source.
func (ix *Index) Inner(e *Element) string {
	return ix.Source[e.StartEnd:e.EndStart]
}

// InnerText returns the unescaped, trimmed text content of e.
func (ix *Index) InnerText(e *Element) string {
	return strings.TrimSpace(TextOf(ix.Inner(e)))
}

// TextOf concatenates the unescaped text tokens of an HTML snippet.
func TextOf(snippet string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// FindAll returns every element matching pred, in document order.
func (ix *Index) FindAll(pred func(*Element) bool) []*Element {
	var out []*Element
	for _, e := range ix.Elements {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// FindByAttr returns elements whose attribute name equals value.
func (ix *Index) FindByAttr(name, value string) []*Element {
	return ix.FindAll(func(e *Element) bool {
		v, ok := e.Attr(name)
		return ok && v == value
	})
}

// FindByKey returns the first element tagged with key under any slot kind.
func (ix *Index) FindByKey(key string) *Element {
	if all := ix.FindAllByKey(key); len(all) > 0 {
		return all[0]
	}
	return nil
}

// FindAllByKey returns every element tagged with key, in document order.
// Component instances repeat the keys of their canonical holder, so a key
// can tag more than one element.
func (ix *Index) FindAllByKey(key string) []*Element {
	if key == "" {
		return nil
	}
	return ix.FindAll(func(e *Element) bool {
		for _, attr := range SlotAttrs {
			if v, ok := e.Attr(attr); ok && v == key {
				return true
			}
		}
		return false
	})
}

// Keys returns every content key tagged in the document.
func (ix *Index) Keys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, e := range ix.Elements {
		for _, attr := range SlotAttrs {
			if v, ok := e.Attr(attr); ok && v != "" {
				keys[v] = struct{}{}
			}
		}
	}
	return keys
}

// Splice is a replacement of the source range [Start, End).
type Splice struct {
	Start int
	End   int
	Text  string
}

// Apply applies non-overlapping splices to the source and returns the result.
// Splices may be given in any order.
func (ix *Index) Apply(splices ...Splice) string {
	if len(splices) == 0 {
		return ix.Source
	}
	sorted := make([]Splice, len(splices))
	copy(sorted, splices)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var b strings.Builder
	b.Grow(len(ix.Source))
	pos := 0
	for _, s := range sorted {
		if s.Start < pos {
			continue
		}
		b.WriteString(ix.Source[pos:s.Start])
		b.WriteString(s.Text)
		pos = s.End
	}
	b.WriteString(ix.Source[pos:])
	return b.String()
}

var attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&#34;")

// RenderStartTag serializes a start tag. Attributes with empty values are
// written in their bare form.
func RenderStartTag(tag string, attrs []html.Attribute, selfClosing bool) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(tag)
	for _, a := range attrs {
		b.WriteByte(' ')
		if a.Namespace != "" {
			b.WriteString(a.Namespace)
			b.WriteByte(':')
		}
		b.WriteString(a.Key)
		if a.Val != "" {
			b.WriteString(`="`)
			b.WriteString(attrEscaper.Replace(a.Val))
			b.WriteByte('"')
		}
	}
	if selfClosing {
		b.WriteString(" /")
	}
	b.WriteByte('>')
	return b.String()
}

// StartTagSplice rewrites e's start tag with attrs.
func StartTagSplice(e *Element, attrs []html.Attribute) Splice {
	return Splice{Start: e.Start, End: e.StartEnd, Text: RenderStartTag(e.Tag, attrs, e.SelfClosing)}
}

// WithAttr returns a copy of attrs with name set to value, appended when
// absent.
func WithAttr(attrs []html.Attribute, name, value string) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs)+1)
	found := false
	for _, a := range attrs {
		if a.Namespace == "" && a.Key == name {
			if !found {
				out = append(out, html.Attribute{Key: name, Val: value})
				found = true
			}
			continue
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, html.Attribute{Key: name, Val: value})
	}
	return out
}

// WithoutAttr returns a copy of attrs without any of the names.
func WithoutAttr(attrs []html.Attribute, names ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	for _, a := range attrs {
		drop := false
		for _, n := range names {
			if a.Namespace == "" && a.Key == n {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, a)
		}
	}
	return out
}

// SameAttrs reports whether two attribute lists are equal in order and value.
func SameAttrs(a, b []html.Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DropAttr removes the named attribute from a raw start tag, keeping every
// other byte of the tag as written.
func DropAttr(startTag, name string) string {
	re := regexp.MustCompile(`(?i)\s+` + regexp.QuoteMeta(name) + `(?:\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'>]+))?([\s/>])`)
	loc := re.FindStringSubmatchIndex(startTag)
	if loc == nil {
		return startTag
	}
	return startTag[:loc[0]] + startTag[loc[2]:]
}

// DropAttrSplice removes the named attribute from e's start tag.
func (ix *Index) DropAttrSplice(e *Element, name string) Splice {
	return Splice{Start: e.Start, End: e.StartEnd, Text: DropAttr(ix.Source[e.Start:e.StartEnd], name)}
}

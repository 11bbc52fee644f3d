package markup

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse parses a full document into a node tree.
func Parse(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}

// Render serializes a node (and its subtree).
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// GetAttr returns the value of the named attribute on n.
func GetAttr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether n carries the attribute.
func HasAttr(n *html.Node, name string) bool {
	_, ok := GetAttr(n, name)
	return ok
}

// SetAttr sets or appends an attribute on n.
func SetAttr(n *html.Node, name, value string) {
	n.Attr = WithAttr(n.Attr, name, value)
}

// RemoveAttr removes the named attributes from n.
func RemoveAttr(n *html.Node, names ...string) {
	n.Attr = WithoutAttr(n.Attr, names...)
}

// RemoveAttrPrefix removes every attribute whose key starts with prefix.
func RemoveAttrPrefix(n *html.Node, prefix string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, prefix) {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// RemoveClasses drops the listed classes from n's class attribute, removing
// the attribute when nothing is left.
func RemoveClasses(n *html.Node, classes []string) {
	current, ok := GetAttr(n, "class")
	if !ok || len(classes) == 0 {
		return
	}
	drop := setOf(classes...)
	var kept []string
	for _, c := range strings.Fields(current) {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		RemoveAttr(n, "class")
		return
	}
	joined := strings.Join(kept, " ")
	if joined != current {
		SetAttr(n, "class", joined)
	}
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(TextContent(c))
	}
	return b.String()
}

// SetText replaces n's children with a single text node.
func SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// FindAll collects every element in n's subtree (n included) matching pred,
// in document order. The result is a snapshot, so callers may mutate the
// tree while iterating it.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && pred(cur) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// FindAllByAttr collects elements carrying the attribute.
func FindAllByAttr(n *html.Node, name string) []*html.Node {
	return FindAll(n, func(e *html.Node) bool { return HasAttr(e, name) })
}

// FindFirst returns the first element matching pred.
func FindFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := FindFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// FindTag returns the first element with the given tag name.
func FindTag(n *html.Node, tag string) *html.Node {
	return FindFirst(n, func(e *html.Node) bool { return e.Data == tag })
}

// Closest returns the nearest ancestor of n (n excluded) matching pred.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && pred(p) {
			return p
		}
	}
	return nil
}

// Clone returns a detached deep copy of n.
func Clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(Clone(child))
	}
	return c
}

// ParseFragment parses a fragment in the context of parent's tag, defaulting
// to body.
func ParseFragment(fragment string, parent *html.Node) ([]*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	if IsElement(parent) {
		ctx = &html.Node{Type: html.ElementNode, DataAtom: parent.DataAtom, Data: parent.Data, Namespace: parent.Namespace}
	}
	return html.ParseFragment(strings.NewReader(fragment), ctx)
}

// FirstElement returns the first element node in nodes.
func FirstElement(nodes []*html.Node) *html.Node {
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	return nil
}

// Replace swaps old for repl in old's parent.
func Replace(old, repl *html.Node) {
	if old.Parent == nil {
		return
	}
	old.Parent.InsertBefore(repl, old)
	old.Parent.RemoveChild(old)
}

// InsertAfter inserts n as the next sibling of ref.
func InsertAfter(ref, n *html.Node) {
	if ref.Parent == nil {
		return
	}
	if ref.NextSibling == nil {
		ref.Parent.AppendChild(n)
		return
	}
	ref.Parent.InsertBefore(n, ref.NextSibling)
}

// Detach removes n from its parent.
func Detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// SiteOf returns the data-cms-site attribute of the html or body element.
func SiteOf(doc *html.Node) string {
	for _, tag := range []string{"html", "body"} {
		if el := FindTag(doc, tag); el != nil {
			if v, ok := GetAttr(el, AttrSite); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}

// Attached reports whether n is still reachable from root.
func Attached(n, root *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

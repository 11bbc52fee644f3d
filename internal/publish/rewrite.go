package publish

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/pagesmith/internal/markup"
)

// linkStyle keeps a converted link looking like the element it wraps.
var linkStyle = [][2]string{
	{"color", "inherit"},
	{"text-decoration", "none"},
}

// prefixURL roots a site-relative asset URL under /site. Absolute URLs,
// protocol-relative URLs, data URIs, fragments and already prefixed URLs
// are returned unchanged.
func prefixURL(site, u string) string {
	trimmed := strings.TrimSpace(u)
	if site == "" || trimmed == "" {
		return u
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "//"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(lower, "#"),
		strings.Contains(lower, "://"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"):
		return u
	}

	prefix := "/" + site
	if trimmed == prefix || strings.HasPrefix(trimmed, prefix+"/") {
		return u
	}
	trimmed = strings.TrimPrefix(trimmed, "./")
	if strings.HasPrefix(trimmed, "/") {
		return prefix + trimmed
	}
	return prefix + "/" + trimmed
}

// prefixSrcset prefixes the URL of every candidate in a srcset value.
func prefixSrcset(site, srcset string) string {
	parts := strings.Split(srcset, ",")
	for i, part := range parts {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		fields[0] = prefixURL(site, fields[0])
		parts[i] = strings.Join(fields, " ")
	}
	return strings.Join(parts, ", ")
}

// prefixAssets rewrites asset references of image and background slots,
// including img and source elements nested inside them.
func prefixAssets(root *html.Node, site string) int {
	if site == "" {
		return 0
	}
	slots := markup.FindAll(root, func(n *html.Node) bool {
		return markup.HasAttr(n, markup.AttrImage) || markup.HasAttr(n, markup.AttrBackground)
	})

	seen := make(map[*html.Node]bool)
	rewritten := 0
	for _, slot := range slots {
		targets := markup.FindAll(slot, func(n *html.Node) bool {
			return n == slot || n.DataAtom == atom.Img || n.DataAtom == atom.Source
		})
		for _, n := range targets {
			if seen[n] {
				continue
			}
			seen[n] = true
			if rewriteAssetAttrs(n, site) {
				rewritten++
			}
		}
	}
	return rewritten
}

func rewriteAssetAttrs(n *html.Node, site string) bool {
	changed := false
	for i := range n.Attr {
		a := &n.Attr[i]
		var next string
		switch a.Key {
		case "src":
			next = prefixURL(site, a.Val)
		case "srcset":
			next = prefixSrcset(site, a.Val)
		case "style":
			next = markup.RewriteURLs(a.Val, func(u string) string { return prefixURL(site, u) })
		default:
			continue
		}
		if next != a.Val {
			a.Val = next
			changed = true
		}
	}
	return changed
}

// convertLinks turns soft link attributes into real anchors. An enclosing
// anchor is reused; otherwise the element is wrapped in a new one.
func convertLinks(root *html.Node) int {
	converted := 0
	for _, n := range markup.FindAllByAttr(root, markup.AttrLink) {
		href, _ := markup.GetAttr(n, markup.AttrLink)
		href = strings.TrimSpace(href)
		if href == "" {
			continue
		}

		anchor := n
		if n.DataAtom != atom.A {
			anchor = markup.Closest(n, func(c *html.Node) bool { return c.DataAtom == atom.A })
		}
		if anchor == nil {
			if n.Parent == nil {
				continue
			}
			anchor = &html.Node{Type: html.ElementNode, Data: "a", DataAtom: atom.A}
			n.Parent.InsertBefore(anchor, n)
			n.Parent.RemoveChild(n)
			anchor.AppendChild(n)
		}
		markup.SetAttr(anchor, "href", href)

		style, _ := markup.GetAttr(anchor, "style")
		for _, decl := range linkStyle {
			style = markup.SetDeclaration(style, decl[0], decl[1])
		}
		markup.SetAttr(anchor, "style", style)
		converted++
	}
	return converted
}

// stripOptions controls what editor markup is removed.
type stripOptions struct {
	editorPrefix string
	transient    []string
	keepMarkers  bool
}

// stripEditor removes everything that only exists for the editor.
func stripEditor(root *html.Node, opts stripOptions) {
	for _, n := range markup.FindAll(root, func(n *html.Node) bool { return isEditorOnly(n, opts) }) {
		markup.Detach(n)
	}

	for _, n := range markup.FindAll(root, func(*html.Node) bool { return true }) {
		markup.RemoveAttr(n, "contenteditable", "draggable")
		markup.RemoveClasses(n, opts.transient)
		if !opts.keepMarkers {
			markup.RemoveAttrPrefix(n, markup.AttrPrefix)
		}
	}
}

func isEditorOnly(n *html.Node, opts stripOptions) bool {
	if markup.HasAttr(n, markup.AttrEditor) {
		return true
	}
	switch n.DataAtom {
	case atom.Script:
		src, _ := markup.GetAttr(n, "src")
		return hasEditorPrefix(src, opts.editorPrefix)
	case atom.Link:
		href, _ := markup.GetAttr(n, "href")
		return hasEditorPrefix(href, opts.editorPrefix)
	case atom.Meta:
		name, _ := markup.GetAttr(n, "name")
		return !opts.keepMarkers && name == markup.ServiceMetaName
	}
	return false
}

func hasEditorPrefix(u, prefix string) bool {
	if prefix == "" || u == "" {
		return false
	}
	u = strings.TrimSpace(u)
	return strings.HasPrefix(u, prefix) || strings.HasPrefix("/"+strings.TrimPrefix(u, "./"), prefix)
}

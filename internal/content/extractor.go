// Package content derives the flat key→value mapping of a tagged document and
// its site identity. Extraction is read-only.
package content

import (
	"context"
	"strings"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Content is the flat view of a document returned to editors.
type Content struct {
	Values map[string]string `json:"values"`
	Site   string            `json:"site,omitempty"`
}

// Extract parses src and collects every text, image and background slot.
// The Site field holds only the document's own declaration; use
// SiteResolver for the home-document fallback.
func Extract(src string) (*Content, error) {
	ix, err := markup.Scan(src)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	return FromIndex(ix), nil
}

// FromIndex extracts content from an already scanned document.
func FromIndex(ix *markup.Index) *Content {
	c := &Content{Values: make(map[string]string), Site: DeclaredSite(ix)}
	for _, e := range ix.Elements {
		for _, kind := range markup.SlotTypes {
			key, ok := e.Attr(kind.Attr())
			if !ok || key == "" {
				continue
			}
			if _, seen := c.Values[key]; seen {
				continue
			}
			c.Values[key] = SlotValue(ix, e, kind)
		}
	}
	return c
}

// SlotValue returns the current value of e read as a slot of the given kind.
func SlotValue(ix *markup.Index, e *markup.Element, kind markup.SlotType) string {
	switch kind {
	case markup.SlotImage:
		if src, ok := e.Attr("src"); ok && src != "" {
			return src
		}
		style, _ := e.Attr("style")
		return markup.BackgroundURL(style)
	case markup.SlotBackground:
		style, _ := e.Attr("style")
		return markup.BackgroundURL(style)
	default:
		return ix.InnerText(e)
	}
}

// DeclaredSite returns the sanitized data-cms-site of the html or body
// element, or "".
func DeclaredSite(ix *markup.Index) string {
	for _, tag := range []string{"html", "body"} {
		for _, e := range ix.Elements {
			if e.Tag != tag {
				continue
			}
			if v, ok := e.Attr(markup.AttrSite); ok && strings.TrimSpace(v) != "" {
				return sanitize.Site(v)
			}
			break
		}
	}
	return ""
}

// Loader reads the raw source of a page.
type Loader func(ctx context.Context, page string) (string, error)

// SiteResolver applies the home-document fallback for site identity.
type SiteResolver struct {
	Home string
	Load Loader
}

// Resolve returns the site identity of page: its own declaration, else the
// home document's when page is not the home document.
func (r SiteResolver) Resolve(ctx context.Context, page, src string) (string, error) {
	ix, err := markup.Scan(src)
	if err != nil {
		return "", errors.ErrMalformedDocument(page, err)
	}
	if site := DeclaredSite(ix); site != "" {
		return site, nil
	}
	if page == r.Home || r.Home == "" || r.Load == nil {
		return "", nil
	}

	homeSrc, err := r.Load(ctx, r.Home)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	homeIx, err := markup.Scan(homeSrc)
	if err != nil {
		return "", errors.ErrMalformedDocument(r.Home, err)
	}
	return DeclaredSite(homeIx), nil
}

// Keys returns every content key tagged in src.
func Keys(src string) (map[string]struct{}, error) {
	ix, err := markup.Scan(src)
	if err != nil {
		return nil, errors.ErrMalformedDocument("", err)
	}
	return ix.Keys(), nil
}

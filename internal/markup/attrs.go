// Package markup holds the tagging vocabulary of pagesmith documents and the
// two views the pipeline takes of a document: a byte-span index built from
// the HTML tokenizer, used wherever untouched bytes must survive an edit, and
// the golang.org/x/net/html node tree, used for whole-document transforms.
package markup

import (
	"fmt"
	"strings"
)

// Tag attributes. The three slot attributes share one keyspace per document.
const (
	AttrPrefix = "data-cms-"

	AttrText       = "data-cms-text"
	AttrImage      = "data-cms-image"
	AttrBackground = "data-cms-bg"
	AttrLink       = "data-cms-link"

	AttrComponent       = "data-cms-component"
	AttrComponentSource = "data-cms-component-source"

	AttrService        = "data-cms-service"
	AttrTemplate       = "data-cms-template"
	AttrBindText       = "data-cms-bind-text"
	AttrBindImage      = "data-cms-bind-image"
	AttrBindBackground = "data-cms-bind-bg"

	AttrStyle  = "data-cms-style"
	AttrSite   = "data-cms-site"
	AttrEditor = "data-cms-editor"

	// ServiceMetaName is the meta name of data-source declarations.
	ServiceMetaName   = "cms-service"
	AttrServiceAlias  = "data-alias"
	AttrServiceMethod = "data-method"
	AttrServiceURL    = "data-url"
	AttrServiceInline = "data-inline"
)

// SlotType is the kind of content an editable slot holds.
type SlotType string

const (
	SlotText       SlotType = "text"
	SlotImage      SlotType = "image"
	SlotBackground SlotType = "background"
)

// SlotTypes lists every slot kind in a stable order.
var SlotTypes = []SlotType{SlotText, SlotImage, SlotBackground}

// Attr returns the tag attribute of the slot kind.
func (t SlotType) Attr() string {
	switch t {
	case SlotImage:
		return AttrImage
	case SlotBackground:
		return AttrBackground
	default:
		return AttrText
	}
}

// ParseSlotType accepts the slot names used by edit requests.
func ParseSlotType(s string) (SlotType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return SlotText, nil
	case "image", "img":
		return SlotImage, nil
	case "background", "bg":
		return SlotBackground, nil
	default:
		return "", fmt.Errorf("unknown slot type %q", s)
	}
}

// SlotAttrs are the attributes that tag a slot.
var SlotAttrs = []string{AttrText, AttrImage, AttrBackground}

// BindingAttrs are stripped from materialized template copies.
var BindingAttrs = []string{AttrService, AttrTemplate, AttrBindText, AttrBindImage, AttrBindBackground}

// voidElements never have content or an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether tag is an HTML void element.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

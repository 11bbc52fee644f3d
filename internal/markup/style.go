package markup

import (
	"regexp"
	"strings"
)

var cssURL = regexp.MustCompile(`(?i)url\(\s*(['"]?)(.*?)['"]?\s*\)`)

// splitDeclarations splits an inline style into trimmed, non-empty
// declarations.
func splitDeclarations(style string) []string {
	var out []string
	for _, decl := range strings.Split(style, ";") {
		if d := strings.TrimSpace(decl); d != "" {
			out = append(out, d)
		}
	}
	return out
}

func property(decl string) string {
	name, _, _ := strings.Cut(decl, ":")
	return strings.ToLower(strings.TrimSpace(name))
}

func isBackground(prop string) bool {
	return prop == "background-image" || prop == "background"
}

// BackgroundURL extracts the background URL of an inline style. The last
// background-image or background shorthand declaring a url wins, as it does
// in the cascade.
func BackgroundURL(style string) string {
	url := ""
	for _, decl := range splitDeclarations(style) {
		if !isBackground(property(decl)) {
			continue
		}
		if m := cssURL.FindStringSubmatch(decl); m != nil {
			url = strings.TrimSpace(m[2])
		}
	}
	return url
}

// SetBackgroundImage drops any background-image declaration and any url
// from a background shorthand, then appends a background-image pointing at
// url. A shorthand left with no value is dropped. An empty url only drops.
// Other declarations keep their order.
func SetBackgroundImage(style, url string) string {
	var kept []string
	for _, decl := range splitDeclarations(style) {
		switch property(decl) {
		case "background-image":
			continue
		case "background":
			name, value, _ := strings.Cut(decl, ":")
			value = strings.Join(strings.Fields(cssURL.ReplaceAllString(value, "")), " ")
			if value == "" {
				continue
			}
			decl = strings.TrimSpace(name) + ": " + value
		}
		kept = append(kept, decl)
	}
	if url != "" {
		kept = append(kept, "background-image: url('"+strings.ReplaceAll(url, "'", "%27")+"')")
	}
	return strings.Join(kept, "; ")
}

// RewriteURLs applies fn to every url(...) reference in a style value.
func RewriteURLs(style string, fn func(string) string) string {
	return cssURL.ReplaceAllStringFunc(style, func(m string) string {
		sub := cssURL.FindStringSubmatch(m)
		if sub == nil {
			return m
		}
		orig := strings.TrimSpace(sub[2])
		next := fn(orig)
		if next == orig {
			return m
		}
		quote := sub[1]
		return "url(" + quote + next + quote + ")"
	})
}

// SetDeclaration sets a property in an inline style, replacing an existing
// declaration of the same property.
func SetDeclaration(style, prop, value string) string {
	var kept []string
	for _, decl := range splitDeclarations(style) {
		if property(decl) == prop {
			continue
		}
		kept = append(kept, decl)
	}
	kept = append(kept, prop+": "+value)
	return strings.Join(kept, "; ")
}

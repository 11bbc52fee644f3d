// Package binding resolves declared data sources and writes their values
// into bound elements. Array data expands template groups into repeated
// markup; the expanded copies lose every binding marker so a second pass
// leaves them alone.
package binding

import (
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/pagesmith/internal/markup"
)

// Service is one data-source declaration.
type Service struct {
	Alias  string `json:"alias"`
	Method string `json:"method"`
	URL    string `json:"url,omitempty"`
	Inline string `json:"inline,omitempty"`
}

// Discover collects the data-source declarations of a document from
// <meta name="cms-service"> elements. Later declarations of an alias
// replace earlier ones.
func Discover(root *html.Node) []Service {
	var out []Service
	seen := make(map[string]int)
	for _, n := range markup.FindAll(root, func(n *html.Node) bool { return n.Data == "meta" }) {
		if name, _ := markup.GetAttr(n, "name"); !strings.EqualFold(name, markup.ServiceMetaName) {
			continue
		}
		alias, _ := markup.GetAttr(n, markup.AttrServiceAlias)
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		method, _ := markup.GetAttr(n, markup.AttrServiceMethod)
		url, _ := markup.GetAttr(n, markup.AttrServiceURL)
		inline, _ := markup.GetAttr(n, markup.AttrServiceInline)

		svc := Service{
			Alias:  alias,
			Method: normalizeMethod(method),
			URL:    strings.TrimSpace(url),
			Inline: strings.TrimSpace(inline),
		}
		if i, ok := seen[alias]; ok {
			out[i] = svc
			continue
		}
		seen[alias] = len(out)
		out = append(out, svc)
	}
	return out
}

func normalizeMethod(m string) string {
	switch strings.ToUpper(strings.TrimSpace(m)) {
	case http.MethodPost:
		return http.MethodPost
	default:
		return http.MethodGet
	}
}

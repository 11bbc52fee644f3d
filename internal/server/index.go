package server

import (
	"fmt"
	"net/url"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/pagesmith/internal/publish"
)

//go:generate templ generate -f index.templ

func pageHref(page string) templ.SafeURL {
	return templ.URL("/api/pages/" + url.PathEscape(page))
}

func publishStatus(report *publish.Report) string {
	if report.OK() {
		return "ok"
	}
	return "failed"
}

func publishLine(report *publish.Report) string {
	return fmt.Sprintf("%s, %d published, %d failed in %s",
		report.Site, len(report.Published), len(report.Failed),
		report.Duration.Round(time.Millisecond))
}

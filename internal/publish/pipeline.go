// Package publish produces the static, editor-free copy of a site.
//
// Each page is loaded, has its components and styles materialized, its
// asset URLs rooted under the site prefix, its soft links turned into real
// anchors and every piece of editor markup removed before it is written
// under the publish root. Pages are processed by a bounded worker pool and a
// failing page never stops the others.
//
// Publishing works on stored documents only. Data sources are not resolved
// again, so bound content is published as it was last written back.
package publish

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/net/html"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/content"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/sanitize"
)

// Documents is the page source a pipeline publishes from.
type Documents interface {
	Read(ctx context.Context, page string) (string, error)
	List(ctx context.Context) ([]string, error)
}

// Materializer replaces placeholders in a parsed document.
type Materializer interface {
	MaterializeNode(ctx context.Context, root *html.Node) (int, error)
}

// Observer receives publish outcomes.
type Observer interface {
	ObservePublish(page string, err error)
	ObservePublishDuration(d time.Duration)
}

// Report summarizes a publish run.
type Report struct {
	RunID     string
	Site      string
	Published []string
	Failed    map[string]error
	Assets    int
	Duration  time.Duration
}

// OK reports whether every page was published.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Pipeline publishes stored pages.
type Pipeline struct {
	cfg        *config.Config
	docs       Documents
	components Materializer
	styles     Materializer
	logger     logging.Logger
	observer   Observer
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports publish outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source used in the manifest.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. Nil materializers are skipped.
func NewPipeline(cfg *config.Config, docs Documents, components, styles Materializer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		docs:       docs,
		components: components,
		styles:     styles,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger).WithComponent("publish")
	return p
}

type pageResult struct {
	page string
	site string
	err  error
}

// Publish publishes pages, or every stored page when pages is empty. The
// returned error is only set when the run as a whole could not proceed;
// per-page failures are collected in the report.
func (p *Pipeline) Publish(ctx context.Context, pages []string) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:  uuid.NewString(),
		Failed: make(map[string]error),
	}

	if len(pages) == 0 {
		listed, err := p.docs.List(ctx)
		if err != nil {
			return nil, err
		}
		pages = listed
	}

	out := p.cfg.PublishPath()
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot create publish root", err)
	}

	resolver := content.SiteResolver{Home: p.cfg.Site.Home, Load: p.docs.Read}
	sites := make(map[string]bool)
	for res := range p.run(ctx, pages, resolver) {
		if res.err != nil {
			report.Failed[res.page] = res.err
			p.logger.Error(ctx, res.err, "page publish failed", "page", res.page)
		} else {
			report.Published = append(report.Published, res.page)
			if res.site != "" {
				sites[res.site] = true
			}
		}
		if p.observer != nil {
			p.observer.ObservePublish(res.page, res.err)
		}
	}
	sort.Strings(report.Published)

	report.Site = p.homeSite(ctx, resolver)
	if report.Site != "" {
		sites[report.Site] = true
	}
	report.Assets = p.copyAssets(ctx, out, sites)
	report.Duration = time.Since(start)

	if err := writeManifest(out, report, p.now()); err != nil {
		p.logger.Error(ctx, err, "manifest write failed")
	}
	if p.observer != nil {
		p.observer.ObservePublishDuration(report.Duration)
	}

	p.logger.Info(ctx, "publish finished",
		"run_id", report.RunID,
		"published", len(report.Published),
		"failed", len(report.Failed),
		"assets", report.Assets,
		"duration", report.Duration,
	)
	return report, nil
}

// run fans pages out to the worker pool and streams back their results.
func (p *Pipeline) run(ctx context.Context, pages []string, resolver content.SiteResolver) <-chan pageResult {
	workers := p.cfg.Publish.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	tasks := make(chan string)
	results := make(chan pageResult, len(pages))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range tasks {
				site, err := p.publishPage(ctx, page, resolver)
				results <- pageResult{page: page, site: site, err: err}
			}
		}()
	}

	go func() {
		defer close(results)
		defer wg.Wait()
		defer close(tasks)
		for _, page := range pages {
			select {
			case <-ctx.Done():
				results <- pageResult{page: page, err: ctx.Err()}
				continue
			case tasks <- page:
			}
		}
	}()
	return results
}

func (p *Pipeline) publishPage(ctx context.Context, page string, resolver content.SiteResolver) (string, error) {
	name, err := sanitize.PageName(page)
	if err != nil {
		return "", err
	}
	src, err := p.docs.Read(ctx, name)
	if err != nil {
		return "", errors.NewPublishError(name, err)
	}
	site, err := resolver.Resolve(ctx, name, src)
	if err != nil {
		return "", errors.NewPublishError(name, err)
	}

	rendered, err := p.Render(ctx, src, site)
	if err != nil {
		return "", errors.NewPublishError(name, err)
	}

	path := filepath.Join(p.cfg.PublishPath(), name)
	if err := atomic.WriteFile(path, strings.NewReader(rendered)); err != nil {
		return "", errors.NewPublishError(name, err)
	}
	p.logger.Debug(ctx, "page published", "page", name, "site", site)
	return site, nil
}

// Render transforms one document into its published form.
func (p *Pipeline) Render(ctx context.Context, src, site string) (string, error) {
	if _, err := markup.Check(src); err != nil {
		return "", errors.ErrMalformedDocument("", err)
	}
	doc, err := markup.Parse(src)
	if err != nil {
		return "", errors.ErrMalformedDocument("", err)
	}

	if p.components != nil {
		if _, err := p.components.MaterializeNode(ctx, doc); err != nil {
			return "", err
		}
	}
	if p.styles != nil {
		if _, err := p.styles.MaterializeNode(ctx, doc); err != nil {
			return "", err
		}
	}

	prefixAssets(doc, site)
	convertLinks(doc)
	stripEditor(doc, stripOptions{
		editorPrefix: p.cfg.Editor.AssetPrefix,
		transient:    p.cfg.Components.TransientClasses,
		keepMarkers:  p.cfg.Publish.KeepMarkers,
	})

	return markup.Render(doc)
}

func (p *Pipeline) homeSite(ctx context.Context, resolver content.SiteResolver) string {
	home, err := p.docs.Read(ctx, p.cfg.Site.Home)
	if err != nil {
		return ""
	}
	site, err := resolver.Resolve(ctx, p.cfg.Site.Home, home)
	if err != nil {
		return ""
	}
	return site
}

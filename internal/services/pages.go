// Package services orchestrates the pipeline stages behind every page
// operation. Handlers and commands talk to these services only; each call
// re-reads the page from storage and writes nothing until the full in-memory
// transform has succeeded.
package services

import (
	"context"
	"sort"
	"strings"

	"github.com/conneroisu/pagesmith/internal/binding"
	"github.com/conneroisu/pagesmith/internal/components"
	"github.com/conneroisu/pagesmith/internal/content"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/markup"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/metrics"
	"github.com/conneroisu/pagesmith/internal/styles"
)

// ReadResult is a page as served to the editor.
type ReadResult struct {
	Page    string           `json:"page"`
	HTML    string           `json:"html"`
	Content *content.Content `json:"content"`
}

// SaveResult reports the outcome of one edit.
type SaveResult struct {
	Page     string             `json:"page"`
	Content  *content.Content   `json:"content"`
	Strategy merge.StrategyName `json:"strategy"`
	Key      string             `json:"key,omitempty"`
	Renamed  bool               `json:"renamed"`
	Matched  bool               `json:"matched"`
	Changed  bool               `json:"changed"`
	Synced   int                `json:"synced,omitempty"`
}

// DocumentStore is the page storage the services read and write.
type DocumentStore interface {
	Path(page string) (string, string, error)
	Read(ctx context.Context, page string) (string, error)
	Write(ctx context.Context, page, src string) error
	Exists(ctx context.Context, page string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// PageServiceConfig holds the collaborators of a PageService. Fragments
// defaults to the backend of the component store or the styles.
type PageServiceConfig struct {
	Documents  DocumentStore
	Fragments  fragments.Store
	Merge      *merge.Engine
	Binding    *binding.Engine
	Components *components.Store
	Styles     *styles.Materializer
	Home       string
	WriteBack  bool
	Metrics    *metrics.Recorder
	Logger     logging.Logger
}

// PageService reads, edits and creates pages.
type PageService struct {
	docs       DocumentStore
	fragments  fragments.Store
	merge      *merge.Engine
	binding    *binding.Engine
	components *components.Store
	styles     *styles.Materializer
	sites      content.SiteResolver
	writeBack  bool
	metrics    *metrics.Recorder
	logger     logging.Logger
}

// NewPageService creates a page service.
func NewPageService(cfg PageServiceConfig) *PageService {
	logger := logging.OrNop(cfg.Logger).WithComponent("pages")
	store := cfg.Fragments
	switch {
	case store != nil:
	case cfg.Components != nil:
		store = cfg.Components.Fragments()
	case cfg.Styles != nil:
		store = cfg.Styles.Fragments()
	}
	return &PageService{
		docs:       cfg.Documents,
		fragments:  store,
		merge:      cfg.Merge,
		binding:    cfg.Binding,
		components: cfg.Components,
		styles:     cfg.Styles,
		sites:      content.SiteResolver{Home: cfg.Home, Load: cfg.Documents.Read},
		writeBack:  cfg.WriteBack,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// List returns the stored page names.
func (s *PageService) List(ctx context.Context) ([]string, error) {
	return s.docs.List(ctx)
}

// Read binds data sources into the page, writes the bound document back
// when write-back is on, then materializes components and styles and
// extracts the content mapping.
func (s *PageService) Read(ctx context.Context, page string) (*ReadResult, error) {
	name, _, err := s.docs.Path(page)
	if err != nil {
		return nil, err
	}
	src, err := s.docs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if _, err := markup.Check(src); err != nil {
		return nil, errors.ErrMalformedDocument(name, err)
	}

	bound := src
	if s.binding != nil {
		out, changed, err := s.binding.ApplySource(ctx, src)
		if err != nil {
			return nil, err
		}
		if changed {
			bound = out
			if s.writeBack {
				if err := s.docs.Write(ctx, name, bound); err != nil {
					return nil, err
				}
				s.logger.Debug(ctx, "bound document written back", "page", name)
			}
		}
	}

	html := bound
	if s.components != nil {
		if html, err = s.components.Materialize(ctx, html); err != nil {
			return nil, err
		}
	}
	if s.styles != nil {
		if html, err = s.styles.Materialize(ctx, html); err != nil {
			return nil, err
		}
	}

	c, err := s.extract(ctx, name, html)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Page: name, HTML: html, Content: c}, nil
}

// Save merges one edit into the page. Canonical component edits are synced
// to the other instances in the page, changed fragments are persisted and
// the page is written atomically. An edit whose target is not found leaves
// storage untouched and reports Matched=false.
func (s *PageService) Save(ctx context.Context, page string, req *merge.EditRequest) (*SaveResult, error) {
	name, _, err := s.docs.Path(page)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.docs.Read(ctx, name)
	if err != nil {
		if !errors.IsNotFound(err) || strings.TrimSpace(req.Body) == "" {
			return nil, err
		}
		stored = ""
	}

	res, err := s.merge.Merge(ctx, stored, req)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveMerge(string(res.Strategy), res.Matched, res.Renamed)

	out := &SaveResult{
		Page:     name,
		Strategy: res.Strategy,
		Key:      res.Key,
		Renamed:  res.Renamed,
		Matched:  res.Matched,
		Changed:  res.Changed,
	}

	doc := res.Document
	if res.Matched && (res.Changed || stored == "") {
		doc, out.Synced, err = s.commit(ctx, name, doc)
		if err != nil {
			return nil, err
		}
	}

	out.Content, err = s.extract(ctx, name, doc)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create stores a new page from a full document body.
func (s *PageService) Create(ctx context.Context, page, body string) (*SaveResult, error) {
	name, _, err := s.docs.Path(page)
	if err != nil {
		return nil, err
	}
	if _, err := markup.Check(body); err != nil {
		return nil, errors.ErrMalformedDocument(name, err)
	}
	exists, err := s.docs.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidName, "page already exists: "+name).WithPage(name)
	}

	doc, synced, err := s.commit(ctx, name, body)
	if err != nil {
		return nil, err
	}
	c, err := s.extract(ctx, name, doc)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "page created", "page", name)
	return &SaveResult{
		Page:     name,
		Content:  c,
		Strategy: merge.StrategyLayout,
		Matched:  true,
		Changed:  true,
		Synced:   synced,
	}, nil
}

// SetCanonical marks the element at path as the canonical holder of the
// component id and syncs the other instances from it.
func (s *PageService) SetCanonical(ctx context.Context, page, path, id string) (*SaveResult, error) {
	name, _, err := s.docs.Path(page)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.ErrMissingTarget("canonical")
	}
	src, err := s.docs.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, matched, err := components.SetCanonical(src, path, id)
	if err != nil {
		return nil, err
	}

	out := &SaveResult{Page: name, Matched: matched, Changed: matched && doc != src}
	if out.Changed {
		if doc, out.Synced, err = s.commit(ctx, name, doc); err != nil {
			return nil, err
		}
	}
	if out.Content, err = s.extract(ctx, name, doc); err != nil {
		return nil, err
	}
	return out, nil
}

// SyncComponents re-syncs component instances and persists fragments for
// every stored page. It returns the number of rewritten instances per page.
func (s *PageService) SyncComponents(ctx context.Context) (map[string]int, error) {
	pages, err := s.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	synced := make(map[string]int)
	for _, page := range pages {
		src, err := s.docs.Read(ctx, page)
		if err != nil {
			return synced, err
		}
		doc, n, err := s.sync(src)
		if err != nil {
			s.logger.Warn(ctx, err, "component sync skipped page", "page", page)
			continue
		}
		if err := s.persist(ctx, page, doc, persistOptions{write: doc != src, canonicalOnly: true}); err != nil {
			return synced, err
		}
		if n > 0 {
			synced[page] = n
		}
	}
	return synced, nil
}

// commit syncs doc and writes it together with its fragments.
func (s *PageService) commit(ctx context.Context, page, doc string) (string, int, error) {
	doc, synced, err := s.sync(doc)
	if err != nil {
		return "", 0, err
	}
	if err := s.persist(ctx, page, doc, persistOptions{write: true}); err != nil {
		return "", 0, err
	}
	return doc, synced, nil
}

type persistOptions struct {
	write bool
	// canonicalOnly skips lone component holders, so a sweep over every
	// page never lets an unflagged instance redefine a component.
	canonicalOnly bool
}

// persist stages the component fragments and stylesheets of doc, commits
// them, then writes the page when opts.write is set. A failed page write
// rolls the fragment writes back, so storage is left as it was.
func (s *PageService) persist(ctx context.Context, page, doc string, opts persistOptions) error {
	batch := fragments.NewBatch(s.fragments)

	var update *components.Update
	if s.components != nil {
		stage := s.components.Stage
		if opts.canonicalOnly {
			stage = s.components.StageCanonical
		}
		u, err := stage(ctx, batch, page, doc)
		if err != nil {
			return err
		}
		update = u
	}
	if s.styles != nil {
		if _, err := s.styles.Stage(ctx, batch, doc); err != nil {
			return err
		}
	}

	if err := batch.Commit(ctx); err != nil {
		return err
	}
	if opts.write {
		if err := s.docs.Write(ctx, page, doc); err != nil {
			if rbErr := batch.Rollback(ctx); rbErr != nil {
				s.logger.Error(ctx, rbErr, "fragment rollback failed", "page", page)
			}
			return err
		}
	}

	if update != nil {
		s.components.Apply(ctx, update)
		if ids := update.IDs(); len(ids) > 0 {
			s.logger.Info(ctx, "components updated", "page", page, "ids", ids)
		}
	}
	return nil
}

// sync overwrites the instances of every canonical component in doc.
func (s *PageService) sync(doc string) (string, int, error) {
	ids, err := components.CanonicalIDs(doc)
	if err != nil {
		return "", 0, err
	}
	sort.Strings(ids)
	total := 0
	for _, id := range ids {
		next, n, err := components.SyncInstances(doc, id)
		if err != nil {
			return "", 0, err
		}
		doc = next
		total += n
	}
	s.metrics.ObserveSync(total)
	return doc, total, nil
}

func (s *PageService) extract(ctx context.Context, page, doc string) (*content.Content, error) {
	c, err := content.Extract(doc)
	if err != nil {
		return nil, errors.ErrMalformedDocument(page, err)
	}
	site, err := s.sites.Resolve(ctx, page, doc)
	if err != nil {
		s.logger.Warn(ctx, err, "site identity unavailable", "page", page)
	} else {
		c.Site = site
	}
	return c, nil
}

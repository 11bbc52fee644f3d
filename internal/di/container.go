// Package di wires the pagesmith services from configuration. The container
// owns the resources that need closing, such as the fragment store, and
// hands out the shared instances to commands and the HTTP server.
package di

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/pagesmith/internal/binding"
	"github.com/conneroisu/pagesmith/internal/components"
	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/keys"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/metrics"
	"github.com/conneroisu/pagesmith/internal/publish"
	"github.com/conneroisu/pagesmith/internal/services"
	"github.com/conneroisu/pagesmith/internal/storage"
	"github.com/conneroisu/pagesmith/internal/styles"
)

// ServiceContainer holds the initialized services.
type ServiceContainer struct {
	mu          sync.Mutex
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Recorder
	initialized bool

	fragments  fragments.Store
	documents  *storage.Documents
	catalog    *components.Catalog
	components *components.Store
	styles     *styles.Materializer
	binding    *binding.Engine
	merge      *merge.Engine
	pipeline   *publish.Pipeline
	pages      *services.PageService
	publisher  *services.PublishService
}

// NewServiceContainer creates a container. A nil recorder disables metrics.
func NewServiceContainer(cfg *config.Config, logger logging.Logger, recorder *metrics.Recorder) *ServiceContainer {
	return &ServiceContainer{
		config:  cfg,
		logger:  logging.OrNop(logger),
		metrics: recorder,
	}
}

// Initialize builds every service. Calling it again is a no-op.
func (c *ServiceContainer) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}

	store, err := fragments.Open(c.config)
	if err != nil {
		return fmt.Errorf("failed to open fragment store: %w", err)
	}

	catalog := components.NewCatalog()
	if err := catalog.Load(ctx, store); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to load component catalog: %w", err)
	}

	resolver := binding.NewResolver(
		binding.WithTTL(c.config.Binding.TTL),
		binding.WithTimeout(c.config.Binding.Timeout),
		binding.WithFetcher(binding.NewHTTPFetcher(c.config.Binding.Timeout, c.config.Binding.MaxBytes)),
		binding.WithLogger(c.logger),
		binding.WithObserver(c.metrics),
	)

	c.fragments = store
	c.catalog = catalog
	c.documents = storage.NewDocuments(c.config.PagesPath())
	c.components = components.NewStore(store, catalog, c.config.Components.TransientClasses, c.logger)
	c.styles = styles.New(store, c.logger)
	c.binding = binding.NewEngine(resolver, c.logger)
	c.merge = merge.NewEngine(keys.NewAllocator(), c.logger)
	c.pipeline = publish.NewPipeline(c.config, c.documents, c.components, c.styles,
		publish.WithLogger(c.logger),
		publish.WithObserver(c.metrics),
	)
	c.pages = services.NewPageService(services.PageServiceConfig{
		Documents:  c.documents,
		Fragments:  store,
		Merge:      c.merge,
		Binding:    c.binding,
		Components: c.components,
		Styles:     c.styles,
		Home:       c.config.Site.Home,
		WriteBack:  c.config.Binding.WriteBack,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	c.publisher = services.NewPublishService(c.pipeline, c.logger)

	c.initialized = true
	c.logger.Debug(ctx, "services initialized",
		"backend", c.config.Components.Backend,
		"components", catalog.Count(),
	)
	return nil
}

// Config returns the configuration the container was built from.
func (c *ServiceContainer) Config() *config.Config { return c.config }

// Logger returns the root logger.
func (c *ServiceContainer) Logger() logging.Logger { return c.logger }

// Metrics returns the recorder, possibly nil.
func (c *ServiceContainer) Metrics() *metrics.Recorder { return c.metrics }

// Pages returns the page service.
func (c *ServiceContainer) Pages() *services.PageService { return c.pages }

// Publisher returns the publish service.
func (c *ServiceContainer) Publisher() *services.PublishService { return c.publisher }

// Catalog returns the component catalog.
func (c *ServiceContainer) Catalog() *components.Catalog { return c.catalog }

// Components returns the component store.
func (c *ServiceContainer) Components() *components.Store { return c.components }

// Documents returns the page store.
func (c *ServiceContainer) Documents() *storage.Documents { return c.documents }

// Fragments returns the fragment store.
func (c *ServiceContainer) Fragments() fragments.Store { return c.fragments }

// Shutdown releases the container's resources.
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	c.initialized = false
	if err := c.fragments.Close(); err != nil {
		return fmt.Errorf("failed to shutdown fragment store: %w", err)
	}
	c.logger.Debug(ctx, "services stopped")
	return nil
}

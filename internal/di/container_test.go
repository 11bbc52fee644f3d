package di

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/fragments"
	"github.com/conneroisu/pagesmith/internal/merge"
	"github.com/conneroisu/pagesmith/internal/metrics"
)

func TestServiceContainer_Lifecycle(t *testing.T) {
	for _, backend := range []string{config.BackendFile, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Site.Root = t.TempDir()
			cfg.Components.Backend = backend
			ctx := context.Background()

			c := NewServiceContainer(cfg, nil, metrics.NewRecorder(nil))
			require.NoError(t, c.Initialize(ctx))
			require.NoError(t, c.Initialize(ctx))

			require.NotNil(t, c.Pages())
			require.NotNil(t, c.Publisher())
			require.NotNil(t, c.Catalog())
			assert.Same(t, cfg, c.Config())

			_, err := c.Pages().Create(ctx, "index", `<body><div data-cms-component="nav" data-cms-component-source="true"><a href="/">Home</a></div></body>`)
			require.NoError(t, err)

			body, ok, err := c.Fragments().Get(ctx, fragments.KindComponent, "nav")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `<div data-cms-component="nav"><a href="/">Home</a></div>`, body)

			res, err := c.Pages().Save(ctx, "index", &merge.EditRequest{Key: "nope", Type: "text", Value: "x"})
			require.NoError(t, err)
			assert.False(t, res.Matched)

			report, err := c.Publisher().Publish(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"index.html"}, report.Published)

			require.NoError(t, c.Shutdown(ctx))
			require.NoError(t, c.Shutdown(ctx))

			reopened := NewServiceContainer(cfg, nil, nil)
			require.NoError(t, reopened.Initialize(ctx))
			defer reopened.Shutdown(ctx)
			assert.Equal(t, 1, reopened.Catalog().Count(), "catalog is loaded from the fragment store")
		})
	}
}

func TestServiceContainer_BadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Site.Root = t.TempDir()
	cfg.Components.Backend = "redis"

	err := NewServiceContainer(cfg, nil, nil).Initialize(context.Background())
	assert.Error(t, err)
}

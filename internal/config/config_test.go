package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "pages", cfg.Site.PagesDir)
				assert.Equal(t, "index.html", cfg.Site.Home)
				assert.Equal(t, 5*time.Minute, cfg.Binding.TTL)
				assert.True(t, cfg.Binding.WriteBack)
				assert.Equal(t, "file", cfg.Components.Backend)
				assert.Equal(t, []string{"images", "brand"}, cfg.Assets.SharedDirs)
			},
		},
		{
			name: "duration strings and overrides",
			setup: func(v *viper.Viper) {
				v.Set("binding.ttl", "0s")
				v.Set("publish.workers", 0)
				v.Set("components.backend", "sqlite")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Duration(0), cfg.Binding.TTL)
				assert.Equal(t, 1, cfg.Publish.Workers)
				assert.Equal(t, "sqlite", cfg.Components.Backend)
			},
		},
		{
			name:        "invalid port",
			setup:       func(v *viper.Viper) { v.Set("server.port", 70000) },
			expectError: true,
		},
		{
			name:        "traversal in publish root",
			setup:       func(v *viper.Viper) { v.Set("publish.root", "../outside") },
			expectError: true,
		},
		{
			name:        "absolute pages dir",
			setup:       func(v *viper.Viper) { v.Set("site.pages_dir", "/etc") },
			expectError: true,
		},
		{
			name:        "unknown backend",
			setup:       func(v *viper.Viper) { v.Set("components.backend", "redis") },
			expectError: true,
		},
		{
			name:        "home with separator",
			setup:       func(v *viper.Viper) { v.Set("site.home", "sub/index.html") },
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestConfigPaths(t *testing.T) {
	cfg := Default()
	cfg.Site.Root = "site"

	assert.Equal(t, filepath.Join("site", "pages"), cfg.PagesPath())
	assert.Equal(t, filepath.Join("site", "components"), cfg.ComponentsPath())
	assert.Equal(t, filepath.Join("site", "styles"), cfg.StylesPath())
	assert.Equal(t, filepath.Join("site", "public"), cfg.PublishPath())
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	cfg := Default()
	cfg.Publish.Root = "dist"
	require.NoError(t, cfg.WriteFile(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "dist", loaded.Publish.Root)
	assert.Equal(t, cfg.Components.TransientClasses, loaded.Components.TransientClasses)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("PAGESMITH_PUBLISH_ROOT", "out")

	v := viper.New()
	v.SetEnvPrefix("PAGESMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Publish.Root)
}

package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/content"
)

func TestInitService_InitSite(t *testing.T) {
	tests := []struct {
		name    string
		example bool
	}{
		{"minimal", false},
		{"with_example", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "site")
			res, err := NewInitService().InitSite(context.Background(), InitOptions{SiteDir: dir, Example: tt.example})
			require.NoError(t, err)

			for _, sub := range []string{"pages", "components", "styles", "images", "static"} {
				assert.DirExists(t, filepath.Join(dir, sub))
			}
			require.FileExists(t, res.ConfigPath)

			v := viper.New()
			v.SetConfigFile(res.ConfigPath)
			require.NoError(t, v.ReadInConfig())
			cfg, err := config.LoadFrom(v)
			require.NoError(t, err)
			assert.Equal(t, ".", cfg.Site.Root)
			assert.Equal(t, "index.html", cfg.Site.Home)

			page := filepath.Join(dir, "pages", "index.html")
			if !tt.example {
				assert.NoFileExists(t, page)
				return
			}
			assert.Equal(t, []string{"index.html"}, res.Pages)
			src, err := os.ReadFile(page)
			require.NoError(t, err)
			c, err := content.Extract(string(src))
			require.NoError(t, err)
			assert.Equal(t, "Welcome", c.Values["hero.title"])
			assert.Equal(t, "mysite", c.Site)
		})
	}
}

func TestInitService_KeepsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0o644))

	_, err := NewInitService().InitSite(context.Background(), InitOptions{SiteDir: dir})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "server:\n  port: 9999\n", string(data))

	_, err = NewInitService().InitSite(context.Background(), InitOptions{SiteDir: dir, Force: true})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 8080")
}

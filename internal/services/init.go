package services

import (
	"context"
	"os"
	"path/filepath"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/storage"
)

// InitOptions controls site initialization.
type InitOptions struct {
	SiteDir string
	Force   bool
	Example bool
}

// InitResult lists what initialization wrote.
type InitResult struct {
	ConfigPath string
	Dirs       []string
	Pages      []string
}

// InitService lays out a new site.
type InitService struct{}

// NewInitService creates an initialization service.
func NewInitService() *InitService {
	return &InitService{}
}

const examplePage = `<!DOCTYPE html>
<html lang="en" data-cms-site="mysite">
<head>
  <meta charset="utf-8">
  <title>Welcome</title>
</head>
<body>
  <header data-cms-component="nav" data-cms-component-source="true">
    <a href="/">Home</a>
  </header>
  <h1 data-cms-text="hero.title">Welcome</h1>
  <p data-cms-text="hero.body">Click any text to edit it.</p>
  <img data-cms-image="hero.image" src="images/hero.png" alt="">
</body>
</html>
`

// InitSite creates the site directories and a default configuration file.
// An existing configuration is kept unless Force is set.
func (s *InitService) InitSite(ctx context.Context, opts InitOptions) (*InitResult, error) {
	if opts.SiteDir == "" {
		opts.SiteDir = "."
	}

	cfg := config.Default()
	cfg.Site.Root = opts.SiteDir

	res := &InitResult{ConfigPath: filepath.Join(opts.SiteDir, config.DefaultFileName)}

	dirs := []string{cfg.PagesPath(), cfg.ComponentsPath(), cfg.StylesPath()}
	for _, dir := range cfg.Assets.StaticDirs {
		dirs = append(dirs, filepath.Join(opts.SiteDir, dir))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorage, "cannot create directory "+dir, err)
		}
		res.Dirs = append(res.Dirs, dir)
	}

	if _, err := os.Stat(res.ConfigPath); err != nil || opts.Force {
		// The written file is relative to its own directory.
		fileCfg := *cfg
		fileCfg.Site.Root = "."
		if err := fileCfg.WriteFile(res.ConfigPath); err != nil {
			return nil, err
		}
	}

	if opts.Example {
		docs := storage.NewDocuments(cfg.PagesPath())
		exists, err := docs.Exists(ctx, cfg.Site.Home)
		if err != nil {
			return nil, err
		}
		if !exists || opts.Force {
			if err := docs.Write(ctx, cfg.Site.Home, examplePage); err != nil {
				return nil, err
			}
			res.Pages = append(res.Pages, cfg.Site.Home)
		}
	}

	return res, nil
}

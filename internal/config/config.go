// Package config provides configuration management for pagesmith using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files (.pagesmith.yml), environment
// variable overrides with the PAGESMITH_ prefix, and validation of every
// directory setting so that no configured path can escape the site root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagesmith/internal/errors"
)

// DefaultFileName is the config file written by `pagesmith init`.
const DefaultFileName = ".pagesmith.yml"

// Component store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	Site       SiteConfig       `mapstructure:"site" yaml:"site"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Binding    BindingConfig    `mapstructure:"binding" yaml:"binding"`
	Components ComponentsConfig `mapstructure:"components" yaml:"components"`
	Publish    PublishConfig    `mapstructure:"publish" yaml:"publish"`
	Assets     AssetsConfig     `mapstructure:"assets" yaml:"assets"`
	Editor     EditorConfig     `mapstructure:"editor" yaml:"editor"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// SiteConfig locates the working documents and stores.
type SiteConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	PagesDir      string `mapstructure:"pages_dir" yaml:"pages_dir"`
	ComponentsDir string `mapstructure:"components_dir" yaml:"components_dir"`
	StylesDir     string `mapstructure:"styles_dir" yaml:"styles_dir"`
	Home          string `mapstructure:"home" yaml:"home"`
}

// ServerConfig configures the editor API. A zero RequestsPerMinute disables
// rate limiting.
type ServerConfig struct {
	Host              string   `mapstructure:"host" yaml:"host"`
	Port              int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins    []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RequestsPerMinute int      `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int      `mapstructure:"burst" yaml:"burst"`
}

// BindingConfig tunes data-source resolution. A zero TTL means every read
// refetches and falls back to the last good value on failure.
type BindingConfig struct {
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	WriteBack bool          `mapstructure:"write_back" yaml:"write_back"`
	MaxBytes  int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
}

type ComponentsConfig struct {
	Backend          string   `mapstructure:"backend" yaml:"backend"` // "file" or "sqlite"
	DSN              string   `mapstructure:"dsn" yaml:"dsn"`
	TransientClasses []string `mapstructure:"transient_classes" yaml:"transient_classes"`
}

type PublishConfig struct {
	Root        string        `mapstructure:"root" yaml:"root"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	KeepMarkers bool          `mapstructure:"keep_markers" yaml:"keep_markers"`
	OnChange    bool          `mapstructure:"on_change" yaml:"on_change"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
}

type AssetsConfig struct {
	StaticDirs []string `mapstructure:"static_dirs" yaml:"static_dirs"`
	SharedDirs []string `mapstructure:"shared_dirs" yaml:"shared_dirs"`
}

// EditorConfig identifies the editor runtime so publish can strip it.
type EditorConfig struct {
	AssetPrefix string `mapstructure:"asset_prefix" yaml:"asset_prefix"`
	RuntimeDir  string `mapstructure:"runtime_dir" yaml:"runtime_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			Root:          ".",
			PagesDir:      "pages",
			ComponentsDir: "components",
			StylesDir:     "styles",
			Home:          "index.html",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			RequestsPerMinute: 600,
			Burst:             60,
		},
		Binding: BindingConfig{
			TTL:       5 * time.Minute,
			Timeout:   10 * time.Second,
			WriteBack: true,
			MaxBytes:  5 * 1024 * 1024,
		},
		Components: ComponentsConfig{
			Backend:          BackendFile,
			DSN:              "pagesmith.db",
			TransientClasses: []string{"cms-selected", "cms-hover", "cms-outline", "cms-dragging"},
		},
		Publish: PublishConfig{
			Root:    "public",
			Workers: 4,
		},
		Assets: AssetsConfig{
			StaticDirs: []string{"static", "images", "brand", "css", "js"},
			SharedDirs: []string{"images", "brand"},
		},
		Editor: EditorConfig{
			AssetPrefix: "/cms/",
			RuntimeDir:  "cms",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers Default() values on v so that partially specified
// files and env overrides merge over them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("site.root", d.Site.Root)
	v.SetDefault("site.pages_dir", d.Site.PagesDir)
	v.SetDefault("site.components_dir", d.Site.ComponentsDir)
	v.SetDefault("site.styles_dir", d.Site.StylesDir)
	v.SetDefault("site.home", d.Site.Home)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)
	v.SetDefault("server.burst", d.Server.Burst)
	v.SetDefault("binding.ttl", d.Binding.TTL)
	v.SetDefault("binding.timeout", d.Binding.Timeout)
	v.SetDefault("binding.write_back", d.Binding.WriteBack)
	v.SetDefault("binding.max_bytes", d.Binding.MaxBytes)
	v.SetDefault("components.backend", d.Components.Backend)
	v.SetDefault("components.dsn", d.Components.DSN)
	v.SetDefault("components.transient_classes", d.Components.TransientClasses)
	v.SetDefault("publish.root", d.Publish.Root)
	v.SetDefault("publish.workers", d.Publish.Workers)
	v.SetDefault("publish.keep_markers", d.Publish.KeepMarkers)
	v.SetDefault("publish.on_change", d.Publish.OnChange)
	v.SetDefault("publish.interval", d.Publish.Interval)
	v.SetDefault("assets.static_dirs", d.Assets.StaticDirs)
	v.SetDefault("assets.shared_dirs", d.Assets.SharedDirs)
	v.SetDefault("editor.asset_prefix", d.Editor.AssetPrefix)
	v.SetDefault("editor.runtime_dir", d.Editor.RuntimeDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applying defaults and validation.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot decode configuration").
			WithContext("cause", err.Error())
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// PagesPath is the directory holding working documents.
func (c *Config) PagesPath() string { return filepath.Join(c.Site.Root, c.Site.PagesDir) }

// ComponentsPath is the directory of the file-backed component store.
func (c *Config) ComponentsPath() string { return filepath.Join(c.Site.Root, c.Site.ComponentsDir) }

// StylesPath is the directory of stored stylesheets.
func (c *Config) StylesPath() string { return filepath.Join(c.Site.Root, c.Site.StylesDir) }

// PublishPath is the publish root.
func (c *Config) PublishPath() string { return filepath.Join(c.Site.Root, c.Publish.Root) }

// WriteFile writes c as YAML to path.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError(errors.ErrCodeStorage, "cannot write config", err)
	}
	return nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Server.Port))
	}

	dirs := map[string]string{
		"site.pages_dir":      cfg.Site.PagesDir,
		"site.components_dir": cfg.Site.ComponentsDir,
		"site.styles_dir":     cfg.Site.StylesDir,
		"publish.root":        cfg.Publish.Root,
		"editor.runtime_dir":  cfg.Editor.RuntimeDir,
	}
	for _, dir := range cfg.Assets.StaticDirs {
		dirs["assets.static_dirs:"+dir] = dir
	}
	for _, dir := range cfg.Assets.SharedDirs {
		dirs["assets.shared_dirs:"+dir] = dir
	}
	for field, dir := range dirs {
		if err := validateRelativePath(dir); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}

	if cfg.Site.Home == "" || strings.ContainsAny(cfg.Site.Home, `/\`) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "site.home must be a plain file name")
	}

	switch cfg.Components.Backend {
	case BackendFile, BackendSQLite:
	default:
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"components.backend must be file or sqlite, got "+cfg.Components.Backend)
	}

	if cfg.Server.RequestsPerMinute < 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "server.requests_per_minute must not be negative")
	}
	if cfg.Server.RequestsPerMinute > 0 && cfg.Server.Burst < 1 {
		cfg.Server.Burst = 1
	}
	if cfg.Publish.Workers < 1 {
		cfg.Publish.Workers = 1
	}
	if cfg.Binding.TTL < 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "binding.ttl must not be negative")
	}
	if cfg.Binding.Timeout <= 0 {
		cfg.Binding.Timeout = Default().Binding.Timeout
	}

	return nil
}

// validateRelativePath rejects empty, absolute and escaping directory names.
func validateRelativePath(path string) error {
	if path == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "empty path")
	}

	cleanPath := filepath.Clean(path)
	if filepath.IsAbs(cleanPath) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "path should be relative: "+path)
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return errors.ErrPathTraversal(path)
	}

	return nil
}

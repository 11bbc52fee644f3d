// Package cmd provides the pagesmith command-line interface.
//
// Configuration is read, in order of precedence, from command-line flags,
// PAGESMITH_* environment variables (a .env file in the working directory
// is loaded first), the file named by --config or PAGESMITH_CONFIG_FILE,
// and finally .pagesmith.yml in the working directory. Nested keys map to
// variables by replacing dots with underscores, so server.port is
// PAGESMITH_SERVER_PORT.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/pagesmith/internal/config"
	"github.com/conneroisu/pagesmith/internal/di"
	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/metrics"
)

const envPrefix = "PAGESMITH"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pagesmith",
	Short: "Edit static HTML pages in place and publish them",
	Long: `pagesmith edits plain HTML pages in place. Content slots, reusable
components, styles and data-bound lists are tagged with data-cms-*
attributes; edits are merged back into the stored pages without disturbing
the rest of the markup, and publish writes an editor-free copy of the site.

Quick start:
  pagesmith init --example    Create a site with a starter page
  pagesmith serve             Start the editor API with live reload
  pagesmith publish           Publish every page`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .pagesmith.yml, or PAGESMITH_CONFIG_FILE)")
	rootCmd.PersistentFlags().String("site", "", "site root directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"site":       "site.root",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// bindFlags binds each flag in fs to its config key.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// initConfig points viper at the config file and environment.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(envPrefix+"_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv(envPrefix + "_CONFIG_FILE"))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, ".yml"))
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Cannot read config file:", err)
		}
	}
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
}

// openContainer loads the configuration and wires every service.
func openContainer(ctx context.Context) (*di.ServiceContainer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	c := di.NewServiceContainer(cfg, newLogger(cfg), metrics.NewRecorder(nil))
	if err := c.Initialize(ctx); err != nil {
		_ = c.Shutdown(ctx)
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	return c, nil
}

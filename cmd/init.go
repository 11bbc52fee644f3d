package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagesmith/internal/services"
)

var (
	initForce   bool
	initExample bool
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Create the site layout and a default .pagesmith.yml",
	Long: `Create the pages, components and styles directories, the static asset
directories and a default .pagesmith.yml. An existing config file is kept
unless --force is given.

Examples:
  pagesmith init
  pagesmith init mysite --example`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config and starter page")
	initCmd.Flags().BoolVar(&initExample, "example", false, "write a starter home page")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	res, err := services.NewInitService().InitSite(cmd.Context(), services.InitOptions{
		SiteDir: dir,
		Force:   initForce,
		Example: initExample,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized site in %s\n", dir)
	fmt.Fprintf(out, "  config: %s\n", res.ConfigPath)
	for _, page := range res.Pages {
		fmt.Fprintf(out, "  page:   %s\n", page)
	}
	return nil
}

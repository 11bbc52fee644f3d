package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagesmith/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the pagesmith version, commit, build time, Go version and platform.

Examples:
  pagesmith version
  pagesmith version --short
  pagesmith version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "show the version only")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if versionFormat != "text" {
		return writeFormatted(out, versionFormat, version.GetBuildInfo())
	}
	if versionShort {
		fmt.Fprintln(out, version.GetShortVersion())
		return nil
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(out, "pagesmith %s", version.GetShortVersion())
	if info.Dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	if !info.BuildTime.IsZero() {
		fmt.Fprintf(out, "Built:    %s\n", info.BuildTime.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(out, "Go:       %s\n", info.GoVersion)
	fmt.Fprintf(out, "Platform: %s\n", info.Platform)
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	extractFormat string
	extractHTML   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <page>",
	Short: "Print the editable content of a page",
	Long: `Print the content keys of a page and the site it belongs to. Data
sources are resolved first, exactly as the editor sees the page.

Examples:
  pagesmith extract index
  pagesmith extract about --format yaml
  pagesmith extract index --html`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "json", "output format (json, yaml)")
	extractCmd.Flags().BoolVar(&extractHTML, "html", false, "print the materialized document instead")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	res, err := c.Pages().Read(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractHTML {
		_, err := io.WriteString(out, res.HTML)
		return err
	}
	return writeFormatted(out, extractFormat, res.Content)
}

// writeFormatted prints v as indented JSON or YAML.
func writeFormatted(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml)", format)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/pagesmith/internal/errors"
	"github.com/conneroisu/pagesmith/internal/merge"
)

var (
	editRequestFile string
	editFormat      string
)

var editCmd = &cobra.Command{
	Use:   "edit <page>",
	Short: "Apply one edit request to a page",
	Long: `Merge an edit request into a stored page. The request is the same JSON
document the editor posts:

  {"key": "hero.title", "type": "text", "value": "Hello"}

Use --request - to read it from standard input. A request whose target is
not found leaves the page untouched and reports matched: false.

Examples:
  pagesmith edit index --request title.json
  echo '{"key":"hero.title","type":"text","value":"Hi"}' | pagesmith edit index --request -`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editRequestFile, "request", "r", "", "edit request JSON file, or - for stdin")
	editCmd.Flags().StringVarP(&editFormat, "format", "f", "json", "output format (json, yaml)")
	_ = editCmd.MarkFlagRequired("request")
}

func runEdit(cmd *cobra.Command, args []string) error {
	req, err := readEditRequest(cmd.InOrStdin(), editRequestFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	res, err := c.Pages().Save(ctx, args[0], req)
	if err != nil {
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), editFormat, res)
}

func readEditRequest(stdin io.Reader, path string) (*merge.EditRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req merge.EditRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeMalformedRequest, "invalid edit request: "+err.Error())
	}
	return &req, nil
}

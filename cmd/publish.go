package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:     "publish [page...]",
	Aliases: []string{"p"},
	Short:   "Write the editor-free copy of the site",
	Long: `Publish every stored page, or only the named ones, under the publish
root. Asset URLs are rooted under the site name, soft links become real
anchors and all editor markup is removed. A failing page is reported and
does not stop the others.

Examples:
  pagesmith publish
  pagesmith publish index about`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	report, err := c.Publisher().Publish(ctx, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Published %d page(s) for site %q to %s in %s\n",
		len(report.Published), report.Site, c.Config().PublishPath(), report.Duration)
	for _, page := range report.Published {
		fmt.Fprintf(out, "  ok     %s\n", page)
	}

	failed := make([]string, 0, len(report.Failed))
	for page := range report.Failed {
		failed = append(failed, page)
	}
	sort.Strings(failed)
	for _, page := range failed {
		fmt.Fprintf(out, "  failed %s: %v\n", page, report.Failed[page])
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d page(s) failed to publish", len(failed))
	}
	return nil
}

package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var componentsFormat string

var componentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"c"},
	Short:   "Inspect and sync reusable components",
}

var componentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored component definitions",
	Args:  cobra.NoArgs,
	RunE:  runComponentsList,
}

var componentsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy every canonical component into its instances",
	Long: `Walk every stored page, persist the canonical fragment of each
component and rewrite the other instances to match it. Pages whose
instances already match are left untouched.`,
	Args: cobra.NoArgs,
	RunE: runComponentsSync,
}

func init() {
	rootCmd.AddCommand(componentsCmd)
	componentsCmd.AddCommand(componentsListCmd, componentsSyncCmd)

	componentsListCmd.Flags().StringVarP(&componentsFormat, "format", "f", "table", "output format (table, json, yaml)")
}

func runComponentsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	entries := c.Catalog().All()
	if componentsFormat != "table" {
		return writeFormatted(cmd.OutOrStdout(), componentsFormat, entries)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tHASH\tUPDATED")
	for _, e := range entries {
		if e.Definition == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\n", e.ID)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, orDash(e.Definition.SourcePage),
			shortHash(e.Definition.Hash), e.Definition.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runComponentsSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c, err := openContainer(ctx)
	if err != nil {
		return err
	}
	defer c.Shutdown(ctx)

	synced, err := c.Pages().SyncComponents(ctx)
	if err != nil {
		return err
	}

	pages := make([]string, 0, len(synced))
	total := 0
	for page, n := range synced {
		pages = append(pages, page)
		total += n
	}
	sort.Strings(pages)

	out := cmd.OutOrStdout()
	for _, page := range pages {
		fmt.Fprintf(out, "  %s: %d instance(s) updated\n", page, synced[page])
	}
	fmt.Fprintf(out, "Synced %d instance(s) across %d page(s); %d component(s) stored\n",
		total, len(pages), c.Catalog().Count())
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

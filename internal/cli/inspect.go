package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/strata/internal/core"
)

func newPatternsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Print the header patterns used for column detection",
		Long: `Patterns prints the active header patterns as YAML. The output is a valid
--patterns file and can be edited and passed back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.settings(cmd, map[string]string{"extract.patterns_file": "patterns"})
			if err != nil {
				return err
			}
			set, err := core.LoadPatternsFile(s.Extract.PatternsFile)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), set)
		},
	}
	cmd.Flags().String("patterns", "", "YAML file overriding the header patterns")
	return cmd
}

var storeFlags = map[string]string{
	"storage.driver":     "driver",
	"storage.path":       "db",
	"storage.url":        "database-url",
	"storage.collection": "collection",
}

func newRecordsCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "records [id]",
		Short: "List saved records, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd, storeFlags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, s, a.logger(cmd, s))
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				rec, err := store.Get(ctx, s.Storage.Collection, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, rec)
				}
				return writeYAML(out, rec)
			}

			if limit < 1 {
				return fmt.Errorf("invalid request: --limit must be positive")
			}
			records, err := store.List(ctx, s.Storage.Collection, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, records)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBORE\tLAYERS\tDEPTH (FT)\tCREATED")
			for _, rec := range records {
				m := rec.Metadata
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					rec.ID, m.BoreID, len(m.StrataLayers),
					strconv.FormatFloat(m.StrataSummary.TotalDepth, 'f', -1, 64), m.CreatedAt)
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.IntVar(&limit, "limit", 20, "maximum records to list")
	f.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	f.String("driver", "", "record store: memory, sqlite or postgres")
	f.String("db", "", "sqlite database file")
	f.String("database-url", "", "postgres connection string")
	f.String("collection", "", "record collection")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.settings(cmd, nil)
			if err != nil {
				return err
			}
			if s.Storage.URL != "" {
				s.Storage.URL = "****"
			}
			if used := a.v.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			return writeYAML(cmd.OutOrStdout(), s)
		},
	}
}

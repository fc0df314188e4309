package cli

import (
	"context"
	"fmt"
	"io"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/storage/schema"
)

var importFlags = map[string]string{
	"extract.sheet":         "sheet",
	"extract.patterns_file": "patterns",
	"extract.max_file_size": "max-file-size",
	"storage.driver":        "driver",
	"storage.path":          "db",
	"storage.url":           "database-url",
	"storage.collection":    "collection",
}

func newImportCmd(a *app) *cobra.Command {
	var ack bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Extract a borehole log and save it as a record",
		Long: `Import extracts a borehole log and saves the layers to the record store.

When the result needs review, the issues are printed and nothing is saved
unless --ack-review is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd, importFlags)
			if err != nil {
				return err
			}
			logger := a.logger(cmd, s)
			ctx := cmd.Context()

			ext, err := runExtraction(cmd, s, args[0], logger)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, s, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			validator, err := schema.New()
			if err != nil {
				return err
			}
			persister := core.NewPersister(store,
				core.WithCollection(s.Storage.Collection),
				core.WithSchemaValidator(validator),
				core.WithPersisterLogger(logger),
			)

			model, err := core.NewReviewModel(ext.Draft, ext.Result, persister, core.WithReviewLogger(logger))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ext.Result.MustForceReview {
				printIssues(out, ext.Result)
				if !ack {
					return core.ErrReviewNotAcknowledged
				}
				if err := model.AcknowledgeReview(); err != nil {
					return err
				}
			}

			rec, err := model.ConfirmAndSave(withLocalUser(ctx))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved %s (%d layers) to %s\n", rec.ID, len(rec.Metadata.StrataLayers), s.Storage.Collection)
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&ack, "ack-review", false, "save even when the result needs review")
	f.String("driver", "", "record store: memory, sqlite or postgres")
	f.String("db", "", "sqlite database file")
	f.String("database-url", "", "postgres connection string")
	f.String("collection", "", "record collection")
	addExtractFlags(cmd)
	return cmd
}

func printIssues(w io.Writer, result core.ProcessedResult) {
	fmt.Fprintf(w, "review required (confidence %.2f, %s)\n", result.ConfidenceScore, result.RecommendedAction)
	for _, group := range [][]core.SemanticError{result.Recoverable, result.Warnings} {
		for _, se := range group {
			fmt.Fprintf(w, "  [%s] %s: %s\n", se.Severity, se.Kind, se.Message)
		}
	}
}

// withLocalUser records the OS account as the record's creator.
func withLocalUser(ctx context.Context) context.Context {
	u, err := user.Current()
	if err != nil {
		return ctx
	}
	return core.ContextWithUser(ctx, &core.User{ID: u.Username, Name: u.Name})
}

// Package cli implements the strata command line.
//
// Settings come from, highest priority first: flags, STRATA_* environment
// variables, the config file (--config, ./strata.yaml or
// ~/.strata/config.yaml), then defaults.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/logging"
	"github.com/JonMunkholm/strata/internal/sheet"
	"github.com/JonMunkholm/strata/internal/storage"
)

// Settings is the effective CLI configuration.
type Settings struct {
	Storage struct {
		Driver     string `mapstructure:"driver" yaml:"driver"`
		Path       string `mapstructure:"path" yaml:"path"`
		URL        string `mapstructure:"url" yaml:"url,omitempty"`
		Collection string `mapstructure:"collection" yaml:"collection"`
	} `mapstructure:"storage" yaml:"storage"`
	Extract struct {
		MaxFileSize  int64  `mapstructure:"max_file_size" yaml:"max_file_size"`
		Sheet        string `mapstructure:"sheet" yaml:"sheet,omitempty"`
		PatternsFile string `mapstructure:"patterns_file" yaml:"patterns_file,omitempty"`
	} `mapstructure:"extract" yaml:"extract"`
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`
}

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	version string
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	a := &app{v: newViper(), version: version}

	root := &cobra.Command{
		Use:   "strata",
		Short: "Import borehole strata logs from spreadsheets",
		Long: `strata reads borehole logs from .xlsx or .csv files, finds the depth and
material columns, classifies every problem it meets and saves reviewed
layers to a record store.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.readConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./strata.yaml or $HOME/.strata/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newExtractCmd(a),
		newImportCmd(a),
		newPatternsCmd(a),
		newRecordsCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the CLI and prints a user-facing message on failure.
func Execute(ctx context.Context, version string) error {
	root := NewRootCmd(version)
	err := root.ExecuteContext(ctx)
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", core.FormatUserError(err))
	if fe, ok := core.AsFatal(err); ok {
		for _, se := range fe.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", se.Kind, se.Message)
			for _, g := range se.Guidance {
				fmt.Fprintf(w, "      %s\n", g)
			}
		}
	}
	var vf *core.ValidationFailedError
	if errors.As(err, &vf) {
		for _, ve := range vf.Errors {
			fmt.Fprintf(w, "  - %s\n", ve.Error())
		}
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("storage.driver", storage.DriverSQLite)
	v.SetDefault("storage.path", "strata.db")
	v.SetDefault("storage.url", "")
	v.SetDefault("storage.collection", core.DefaultCollection)
	v.SetDefault("extract.max_file_size", sheet.DefaultMaxBytes)
	v.SetDefault("extract.sheet", "")
	v.SetDefault("extract.patterns_file", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig loads the config file. A missing default file is fine; a
// missing --config file is not.
func (a *app) readConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("strata")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".strata"))
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// settings binds cmd's flags to their keys and returns the merged view.
// Binding happens per run so commands sharing a key do not clobber each
// other's flags.
func (a *app) settings(cmd *cobra.Command, flags map[string]string) (Settings, error) {
	for key, name := range flags {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return Settings{}, err
			}
		}
	}
	var s Settings
	if err := a.v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (a *app) logger(cmd *cobra.Command, s Settings) *slog.Logger {
	return logging.New(cmd.ErrOrStderr(), s.Log.Level, s.Log.Format)
}

func openStore(ctx context.Context, s Settings, logger *slog.Logger) (storage.Store, error) {
	return storage.Open(ctx, storage.Options{
		Driver: s.Storage.Driver,
		URL:    s.Storage.URL,
		Path:   s.Storage.Path,
		Logger: logger,
	})
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "strata", a.version)
		},
	}
}

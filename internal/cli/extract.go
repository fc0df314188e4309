package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/sheet"
)

// extractFlags maps settings keys to the flags that override them.
var extractFlags = map[string]string{
	"extract.sheet":         "sheet",
	"extract.patterns_file": "patterns",
	"extract.max_file_size": "max-file-size",
}

type extractOutput struct {
	Result core.ProcessedResult `json:"result" yaml:"result"`
	Draft  core.Draft           `json:"draft" yaml:"draft"`
}

func newExtractCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a draft from a borehole log without saving it",
		Long: `Extract reads an .xlsx or .csv borehole log and prints the classified
result and the draft layers. Nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd, extractFlags)
			if err != nil {
				return err
			}
			ext, err := runExtraction(cmd, s, args[0], a.logger(cmd, s))
			if err != nil {
				return err
			}
			out := extractOutput{Result: ext.Result, Draft: ext.Draft}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeYAML(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of YAML")
	addExtractFlags(cmd)
	return cmd
}

// addExtractFlags registers the decoding and bore metadata flags shared by
// extract and import.
func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("sheet", "", "worksheet to read (default: first visible sheet)")
	f.String("patterns", "", "YAML file overriding the header patterns")
	f.Int64("max-file-size", sheet.DefaultMaxBytes, "largest accepted file in bytes")

	f.String("project", "", "project name")
	f.String("bore-id", "", "bore identifier (default: file name)")
	f.String("notes", "", "free-form notes")
	f.String("depth-unit", "", "depth unit, feet or meters (default: detected)")
	f.Float64("total-depth", 0, "total bore depth")
	f.Float64("water-level", 0, "groundwater level")
}

// runExtraction decodes path and extracts a draft using the command's flags.
func runExtraction(cmd *cobra.Command, s Settings, path string, logger *slog.Logger) (*core.Extraction, error) {
	meta, err := metaFromFlags(cmd, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	patterns, err := core.LoadPatternsFile(s.Extract.PatternsFile)
	if err != nil {
		return nil, err
	}

	dec := sheet.NewDecoder(
		sheet.WithMaxBytes(s.Extract.MaxFileSize),
		sheet.WithSheet(s.Extract.Sheet),
		sheet.WithLogger(logger),
	)
	grid, err := dec.DecodeFile(cmd.Context(), path)
	if err != nil {
		var ee *core.ExtractionError
		if errors.As(err, &ee) {
			return nil, core.NewFatalError(ee)
		}
		return nil, err
	}

	ext := core.NewExtractor(
		core.WithPatterns(patterns),
		core.WithExtractorLogger(logger),
	)
	return ext.Extract(cmd.Context(), grid, meta)
}

func metaFromFlags(cmd *cobra.Command, filename string) (core.ExtractMeta, error) {
	f := cmd.Flags()
	meta := core.ExtractMeta{Filename: filename}
	meta.Project, _ = f.GetString("project")
	meta.BoreID, _ = f.GetString("bore-id")
	meta.Notes, _ = f.GetString("notes")

	if raw, _ := f.GetString("depth-unit"); raw != "" {
		unit, ok := core.ParseDepthUnit(raw)
		if !ok {
			return meta, fmt.Errorf("invalid request: --depth-unit %q must be feet or meters", raw)
		}
		meta.DepthUnit = unit
	}

	if f.Changed("total-depth") {
		v, _ := f.GetFloat64("total-depth")
		if v <= 0 {
			return meta, fmt.Errorf("invalid request: --total-depth must be positive")
		}
		meta.TotalDepth = &v
	}
	if f.Changed("water-level") {
		v, _ := f.GetFloat64("water-level")
		meta.WaterLevel = &v
	}

	meta.Project = strings.TrimSpace(meta.Project)
	meta.BoreID = strings.TrimSpace(meta.BoreID)
	if meta.BoreID == "" {
		meta.BoreID = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	return meta, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

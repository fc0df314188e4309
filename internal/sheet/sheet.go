// Package sheet decodes uploaded borehole logs into a core.Grid.
//
// XLSX workbooks are read with excelize, keeping each cell's solid fill
// color so color-coded strata survive decoding. CSV files are streamed
// through BOM and UTF-8 cleanup first. Anything else is rejected with an
// unsupported-format error; unreadable content becomes file-corrupted.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/strata/internal/core"
)

// DefaultMaxBytes caps decoded input at 20 MiB.
const DefaultMaxBytes int64 = 20 << 20

// ErrFileTooLarge is returned when input exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// Format identifies a supported input format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat maps a filename extension to a Format.
func DetectFormat(filename string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".pdf":
		return "", core.NewExtractionError(core.KindUnsupportedFormat, "PDF logs are not supported; export the table to .xlsx or .csv")
	case ".xls":
		return "", core.NewExtractionError(core.KindUnsupportedFormat, "legacy .xls workbooks are not supported; save as .xlsx")
	case "":
		return "", core.NewExtractionError(core.KindUnsupportedFormat, "file %q has no extension", filename)
	default:
		return "", core.NewExtractionError(core.KindUnsupportedFormat, "unsupported file type %q", ext)
	}
}

// Decoder turns files into grids.
type Decoder struct {
	maxBytes int64
	sheet    string
	logger   *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxBytes sets the size limit. Zero or less keeps DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// WithSheet selects a worksheet by name instead of the first one.
func WithSheet(name string) Option {
	return func(d *Decoder) { d.sheet = name }
}

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{maxBytes: DefaultMaxBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxBytes returns the configured size limit.
func (d *Decoder) MaxBytes() int64 { return d.maxBytes }

// Decode reads r according to filename's extension.
func (d *Decoder) Decode(ctx context.Context, filename string, r io.Reader) (core.Grid, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var grid core.Grid
	switch format {
	case FormatXLSX:
		grid, err = d.decodeXLSX(ctx, r)
	case FormatCSV:
		grid, err = d.decodeCSV(ctx, r)
	}
	if err != nil {
		d.logger.WarnContext(ctx, "sheet.decode_failed", "filename", filename, "format", format, "error", err)
		return nil, err
	}

	d.logger.DebugContext(ctx, "sheet.decoded", "filename", filename, "format", format, "rows", len(grid), "cols", grid.Width())
	return grid, nil
}

// DecodeFile opens path and decodes it.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (core.Grid, error) {
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() > d.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, info.Size(), d.maxBytes)
	}
	return d.Decode(ctx, filepath.Base(path), f)
}

func corrupted(cause error, format string, args ...any) error {
	ee := core.NewExtractionError(core.KindFileCorrupted, format, args...)
	ee.Cause = cause
	return ee
}

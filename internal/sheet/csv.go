package sheet

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/strata/internal/core"
)

// sniffBytes is how much of a CSV file is inspected to choose the delimiter.
const sniffBytes = 4096

func (d *Decoder) decodeCSV(ctx context.Context, r io.Reader) (core.Grid, error) {
	br := bufio.NewReaderSize(wrapCSV(r, d.maxBytes), sniffBytes)

	head, err := br.Peek(sniffBytes)
	switch {
	case err == nil, errors.Is(err, io.EOF):
	case errors.Is(err, ErrFileTooLarge):
		return nil, err
	default:
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(strings.TrimSpace(string(head))) == 0 {
		return nil, core.NewExtractionError(core.KindInsufficientData, "empty file")
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(head)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var grid core.Grid
	for line := 0; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				return nil, err
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, corrupted(err, "malformed csv at line %d: %v", pe.Line, pe.Err)
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}

		row := make([]core.Cell, len(record))
		for i, v := range record {
			row[i] = core.Cell{Value: v}
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// sniffDelimiter picks the most frequent of comma, semicolon and tab on the
// first line. Ties keep the comma.
func sniffDelimiter(head []byte) rune {
	first := string(head)
	if i := strings.IndexAny(first, "\r\n"); i >= 0 {
		first = first[:i]
	}
	best, bestCount := ',', strings.Count(first, ",")
	for _, r := range []rune{';', '\t'} {
		if n := strings.Count(first, string(r)); n > bestCount {
			best, bestCount = r, n
		}
	}
	return best
}

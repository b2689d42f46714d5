// Package output renders dataset rows and query results for the command
// line.
//
// Supported formats:
//   - jsonl: one JSON object per line
//   - json: a single JSON array
//   - csv: comma-separated values with a header row
//   - table: an aligned text table
//
// Example usage:
//
//	formatter, err := output.New("csv", os.Stdout, columns)
//	if err != nil {
//	    return err
//	}
//	return formatter.Format(rows)
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Format names accepted by New.
const (
	FormatJSONL = "jsonl"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// Formats lists every supported format name.
var Formats = []string{FormatJSONL, FormatJSON, FormatCSV, FormatTable}

// Formatter defines the interface for output formatters.
type Formatter interface {
	// Format writes rows in the formatter's specific format
	Format(rows []map[string]any) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// New returns the formatter for format writing to w. Tabular formats emit
// columns in the given order; when columns is empty they use the sorted
// union of the row keys.
func New(format string, w io.Writer, columns []string) (Formatter, error) {
	switch strings.ToLower(format) {
	case FormatJSONL, "":
		return NewJSONLinesFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w, columns), nil
	case FormatTable:
		return NewTableFormatter(w, columns), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

// columnsOf returns columns when given, otherwise every key seen in rows in
// sorted order.
func columnsOf(columns []string, rows []map[string]any) []string {
	if len(columns) > 0 {
		return columns
	}

	columnSet := make(map[string]bool)
	for _, row := range rows {
		for col := range row {
			columnSet[col] = true
		}
	}
	out := make([]string, 0, len(columnSet))
	for col := range columnSet {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// formatValue converts a value to text for tabular output
func formatValue(v any) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case int, int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

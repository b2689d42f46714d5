package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter outputs rows as an aligned, borderless text table
type TableFormatter struct {
	writer  io.Writer
	columns []string
}

// NewTableFormatter creates a new table formatter. columns fixes the
// column order; nil derives it from the rows.
func NewTableFormatter(w io.Writer, columns []string) *TableFormatter {
	return &TableFormatter{writer: w, columns: columns}
}

// SetOutput sets the output writer
func (t *TableFormatter) SetOutput(w io.Writer) {
	t.writer = w
}

// Format writes rows as a table followed by a row count caption
func (t *TableFormatter) Format(rows []map[string]any) error {
	columns := columnsOf(t.columns, rows)

	table := tablewriter.NewWriter(t.writer)
	table.SetHeader(columns)
	table.SetCaption(true, fmt.Sprintf("%d rows", len(rows)))
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = formatValue(row[col])
		}
		table.Append(record)
	}
	table.Render()
	return nil
}

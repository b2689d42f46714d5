package reader

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// ColumnType names the Go representation of a column's values.
type ColumnType string

const (
	TypeBool      ColumnType = "bool"
	TypeInt32     ColumnType = "int32"
	TypeInt64     ColumnType = "int64"
	TypeFloat     ColumnType = "float"
	TypeDouble    ColumnType = "double"
	TypeString    ColumnType = "string"
	TypeTimestamp ColumnType = "timestamp"
	TypeDate      ColumnType = "date"
)

// ColumnInfo describes one column of a dataset schema.
type ColumnInfo struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Column is a named sequence of values of a uniform type. Null entries are
// stored as nil.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Table is an ordered set of equal-length columns.
type Table struct {
	Name    string
	Columns []*Column

	index map[string]int
}

func newTable(name string, leaves []leaf, rows int64) *Table {
	t := &Table{
		Name:    name,
		Columns: make([]*Column, len(leaves)),
		index:   make(map[string]int, len(leaves)),
	}
	for i, l := range leaves {
		t.Columns[i] = &Column{
			Name:   l.name,
			Type:   l.typ,
			Values: make([]any, 0, rows),
		}
		t.index[l.name] = i
	}
	return t
}

// NewTable builds a table from already materialized columns. It fails when
// the columns differ in length or repeat a name.
func NewTable(name string, columns ...*Column) (*Table, error) {
	t := &Table{Name: name, Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchema, c.Name)
		}
		t.index[c.Name] = i
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) validate() error {
	if len(t.Columns) == 0 {
		return nil
	}
	n := len(t.Columns[0].Values)
	for _, c := range t.Columns[1:] {
		if len(c.Values) != n {
			return fmt.Errorf("%w: %s: column %q has %d values, expected %d",
				ErrCorrupt, t.Name, c.Name, len(c.Values), n)
		}
	}
	return nil
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Row returns row i as a column name to value map.
func (t *Table) Row(i int) map[string]any {
	row := make(map[string]any, len(t.Columns))
	for _, c := range t.Columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Rows materializes every row, preserving file order.
func (t *Table) Rows() []map[string]any {
	rows := make([]map[string]any, t.NumRows())
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// converterFor picks the Go representation for a parquet column type.
func converterFor(typ parquet.Type) (ColumnType, func(parquet.Value) any) {
	if lt := typ.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			return TypeTimestamp, timestampConverter(lt.Timestamp.Unit)
		case lt.Date != nil:
			return TypeDate, func(v parquet.Value) any {
				return time.Unix(0, 0).UTC().AddDate(0, 0, int(v.Int32()))
			}
		}
	}

	switch typ.Kind() {
	case parquet.Boolean:
		return TypeBool, func(v parquet.Value) any { return v.Boolean() }
	case parquet.Int32:
		return TypeInt32, func(v parquet.Value) any { return v.Int32() }
	case parquet.Int64:
		return TypeInt64, func(v parquet.Value) any { return v.Int64() }
	case parquet.Float:
		return TypeFloat, func(v parquet.Value) any { return v.Float() }
	case parquet.Double:
		return TypeDouble, func(v parquet.Value) any { return v.Double() }
	case parquet.Int96:
		return TypeString, func(v parquet.Value) any { return v.Int96().String() }
	default:
		// BYTE_ARRAY and FIXED_LEN_BYTE_ARRAY surface as text
		return TypeString, func(v parquet.Value) any { return string(v.ByteArray()) }
	}
}

func timestampConverter(u format.TimeUnit) func(parquet.Value) any {
	switch {
	case u.Millis != nil:
		return func(v parquet.Value) any { return time.UnixMilli(v.Int64()).UTC() }
	case u.Micros != nil:
		return func(v parquet.Value) any { return time.UnixMicro(v.Int64()).UTC() }
	default:
		return func(v parquet.Value) any { return time.Unix(0, v.Int64()).UTC() }
	}
}

// Package reader provides read-only access to the Parquet datasets stored
// under a single data directory.
//
// It uses the parquet-go library to read only the column chunks a caller
// asks for and returns them as an in-memory Table. Every call opens its own
// file handle, so a Store is safe for concurrent use.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

var (
	// ErrNotFound is returned when a dataset does not exist under the store
	// root, or when its name could resolve outside of it.
	ErrNotFound = errors.New("dataset not found")

	// ErrSchema is returned when a requested column is not part of the
	// dataset schema.
	ErrSchema = errors.New("schema error")

	// ErrCorrupt is returned when a dataset exists but cannot be decoded as
	// a Parquet file.
	ErrCorrupt = errors.New("unreadable dataset")
)

// Store resolves dataset names against a fixed root directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is not opened until
// a dataset is requested.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// ValidateName checks that name is a bare file name.
//
// Names containing path separators, parent references or absolute paths are
// rejected with ErrNotFound so callers cannot probe outside the root.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: invalid dataset name %q", ErrNotFound, name)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."):
		return fmt.Errorf("%w: invalid dataset name %q", ErrNotFound, name)
	case filepath.IsAbs(name), filepath.VolumeName(name) != "":
		return fmt.Errorf("%w: invalid dataset name %q", ErrNotFound, name)
	case strings.IndexByte(name, 0) >= 0:
		return fmt.Errorf("%w: invalid dataset name %q", ErrNotFound, name)
	}
	return nil
}

// Stat reports whether the named dataset exists as a regular file.
func (s *Store) Stat(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	root, err := s.openRoot()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	info, err := root.Stat(name)
	if err != nil {
		return notFound(name, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFound, name)
	}
	return nil
}

// Schema returns the readable columns of the named dataset in file order.
//
// Only the file footer is read.
func (s *Store) Schema(name string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	err := s.withFile(name, func(pf *parquet.File) error {
		for _, leaf := range leafColumns(pf.Schema()) {
			cols = append(cols, ColumnInfo{Name: leaf.name, Type: leaf.typ})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cols, nil
}

// Load reads the named dataset into memory.
//
// When columns is empty every readable column is loaded; otherwise only the
// listed columns are read, in the order given. A column absent from the
// schema fails with ErrSchema naming that column. The context is checked
// between row groups.
//
// Example:
//
//	table, err := store.Load(ctx, "sales.parquet", "KeyDate", "Qty")
//	if err != nil {
//	    return err
//	}
//	qty, _ := table.Column("Qty")
func (s *Store) Load(ctx context.Context, name string, columns ...string) (*Table, error) {
	var table *Table
	err := s.withFile(name, func(pf *parquet.File) error {
		selected, err := selectColumns(leafColumns(pf.Schema()), columns)
		if err != nil {
			return err
		}

		table = newTable(name, selected, pf.NumRows())
		for _, rg := range pf.RowGroups() {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunks := rg.ColumnChunks()
			for i, leaf := range selected {
				if err := readColumnChunk(chunks[leaf.index], leaf, table.Columns[i]); err != nil {
					return fmt.Errorf("%w: %s: column %q: %v", ErrCorrupt, name, leaf.name, err)
				}
			}
		}
		return table.validate()
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

func (s *Store) openRoot() (*os.Root, error) {
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: data directory %s: %v", ErrNotFound, s.dir, err)
	}
	return root, nil
}

// withFile opens name beneath the store root and hands the decoded parquet
// file to fn. The handle is closed when fn returns.
func (s *Store) withFile(name string, fn func(*parquet.File) error) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	root, err := s.openRoot()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	file, err := root.Open(name)
	if err != nil {
		return notFound(name, err)
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFound, name)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return fn(pf)
}

// notFound converts a lookup failure into ErrNotFound. Escapes rejected by
// os.Root are reported the same way as missing files.
func notFound(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || strings.Contains(err.Error(), "path escapes") {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
}

// leaf describes a flat, non-repeated column of the file schema.
type leaf struct {
	name  string
	index int
	typ   ColumnType
	conv  func(parquet.Value) any
}

// leafColumns lists the flat columns of schema. Repeated columns cannot be
// represented as one value per row and are left out.
func leafColumns(schema *parquet.Schema) []leaf {
	var leaves []leaf
	for _, path := range schema.Columns() {
		col, ok := schema.Lookup(path...)
		if !ok || col.MaxRepetitionLevel > 0 {
			continue
		}
		typ, conv := converterFor(col.Node.Type())
		leaves = append(leaves, leaf{
			name:  strings.Join(path, "."),
			index: col.ColumnIndex,
			typ:   typ,
			conv:  conv,
		})
	}
	return leaves
}

func selectColumns(leaves []leaf, columns []string) ([]leaf, error) {
	if len(columns) == 0 {
		return leaves, nil
	}

	byName := make(map[string]leaf, len(leaves))
	for _, l := range leaves {
		byName[l.name] = l
	}

	seen := make(map[string]bool, len(columns))
	selected := make([]leaf, 0, len(columns))
	for _, name := range columns {
		if seen[name] {
			continue
		}
		seen[name] = true

		l, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
		}
		selected = append(selected, l)
	}
	return selected, nil
}

// readColumnChunk decodes every page of chunk into col.
func readColumnChunk(chunk parquet.ColumnChunk, l leaf, col *Column) error {
	pages := chunk.Pages()
	defer func() { _ = pages.Close() }()

	buf := make([]parquet.Value, 1024)
	for {
		page, err := pages.ReadPage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		err = readPageValues(page.Values(), buf, l, col)
		parquet.Release(page)
		if err != nil {
			return err
		}
	}
}

func readPageValues(values parquet.ValueReader, buf []parquet.Value, l leaf, col *Column) error {
	for {
		n, err := values.ReadValues(buf)
		for _, v := range buf[:n] {
			if v.IsNull() {
				col.Values = append(col.Values, nil)
				continue
			}
			col.Values = append(col.Values, l.conv(v))
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

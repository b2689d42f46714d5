// Package fixture writes Parquet datasets for tests and local development.
package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Sale is one row of the sales datasets served by the API.
type Sale struct {
	KeyDate     string  `parquet:"KeyDate"`
	KeyStore    string  `parquet:"KeyStore"`
	KeyEmployee string  `parquet:"KeyEmployee"`
	KeyProduct  string  `parquet:"KeyProduct"`
	Qty         int64   `parquet:"Qty"`
	Amount      float64 `parquet:"Amount"`
}

// TimedSale stores KeyDate as a native parquet timestamp.
type TimedSale struct {
	KeyDate  time.Time `parquet:"KeyDate,timestamp"`
	KeyStore string    `parquet:"KeyStore"`
	Qty      float64   `parquet:"Qty"`
	Amount   float64   `parquet:"Amount"`
}

// NullableSale has optional measures, used to exercise null handling.
type NullableSale struct {
	KeyDate  string   `parquet:"KeyDate"`
	KeyStore *string  `parquet:"KeyStore,optional"`
	Qty      *int64   `parquet:"Qty,optional"`
	Amount   *float64 `parquet:"Amount,optional"`
}

// Sales returns a small dataset spanning two months and three stores.
func Sales() []Sale {
	return []Sale{
		{KeyDate: "01/10/2024 09:00 AM", KeyStore: "A", KeyEmployee: "E1", KeyProduct: "P1", Qty: 2, Amount: 20},
		{KeyDate: "01/15/2024 10:00 AM", KeyStore: "A", KeyEmployee: "E2", KeyProduct: "P2", Qty: 3, Amount: 30},
		{KeyDate: "02/01/2024 11:00 AM", KeyStore: "B", KeyEmployee: "E1", KeyProduct: "P1", Qty: 1, Amount: 5},
		{KeyDate: "01/20/2024 04:30 PM", KeyStore: "C", KeyEmployee: "E3", KeyProduct: "P3", Qty: 4, Amount: 10},
		{KeyDate: "01/31/2024 11:59 PM", KeyStore: "B", KeyEmployee: "E2", KeyProduct: "P2", Qty: 0, Amount: 0},
		{KeyDate: "12/31/2023 11:00 PM", KeyStore: "A", KeyEmployee: "E1", KeyProduct: "P3", Qty: 7, Amount: 70},
	}
}

// Write creates dir/name holding rows. It is meant for tooling; tests use
// WriteT.
func Write[T any](dir, name string, rows []T) (path string, err error) {
	path = filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	writer := parquet.NewGenericWriter[T](f)
	if _, err := writer.Write(rows); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// WriteT writes rows to dir/name and fails the test on error.
func WriteT[T any](t testing.TB, dir, name string, rows []T) string {
	t.Helper()
	path, err := Write(dir, name, rows)
	if err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// SalesDir returns a temporary directory containing sales.parquet built
// from Sales.
func SalesDir(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteT(t, dir, "sales.parquet", Sales())
	return dir
}

package reader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vegasq/datamart/internal/fixture"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare file", "sales.parquet", false},
		{"dotted name", "sales.2024.parquet", false},
		{"empty", "", true},
		{"dot", ".", true},
		{"parent", "..", true},
		{"parent prefix", "../secret.parquet", true},
		{"nested", "dir/sales.parquet", true},
		{"backslash", `dir\sales.parquet`, true},
		{"absolute", "/etc/passwd", true},
		{"embedded parent", "a..b", true},
		{"nul byte", "sales\x00.parquet", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("ValidateName(%q) error = %v, want ErrNotFound", tt.input, err)
			}
		})
	}
}

func TestStore_LoadAllColumns(t *testing.T) {
	store := NewStore(fixture.SalesDir(t))

	table, err := store.Load(context.Background(), "sales.parquet")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"KeyDate", "KeyStore", "KeyEmployee", "KeyProduct", "Qty", "Amount"}
	got := table.ColumnNames()
	if len(got) != len(want) {
		t.Fatalf("ColumnNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}

	if table.NumRows() != len(fixture.Sales()) {
		t.Fatalf("NumRows() = %d, want %d", table.NumRows(), len(fixture.Sales()))
	}

	first := table.Row(0)
	if first["KeyDate"] != "01/10/2024 09:00 AM" {
		t.Errorf("row 0 KeyDate = %v", first["KeyDate"])
	}
	if first["Qty"] != int64(2) {
		t.Errorf("row 0 Qty = %#v, want int64(2)", first["Qty"])
	}
	if first["Amount"] != float64(20) {
		t.Errorf("row 0 Amount = %#v, want 20.0", first["Amount"])
	}

	qty, _ := table.Column("Qty")
	if qty.Type != TypeInt64 {
		t.Errorf("Qty type = %s, want %s", qty.Type, TypeInt64)
	}
}

func TestStore_LoadColumnSubset(t *testing.T) {
	store := NewStore(fixture.SalesDir(t))

	table, err := store.Load(context.Background(), "sales.parquet", "Amount", "KeyStore", "Amount")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	names := table.ColumnNames()
	if len(names) != 2 || names[0] != "Amount" || names[1] != "KeyStore" {
		t.Fatalf("ColumnNames() = %v, want [Amount KeyStore]", names)
	}
	if _, ok := table.Column("Qty"); ok {
		t.Error("Qty should not be loaded")
	}

	stores, _ := table.Column("KeyStore")
	wantStores := []string{"A", "A", "B", "C", "B", "A"}
	for i, want := range wantStores {
		if stores.Values[i] != want {
			t.Errorf("KeyStore[%d] = %v, want %s", i, stores.Values[i], want)
		}
	}
}

func TestStore_LoadMissingColumn(t *testing.T) {
	store := NewStore(fixture.SalesDir(t))

	_, err := store.Load(context.Background(), "sales.parquet", "KeyDate", "KeyRegion")
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("Load() error = %v, want ErrSchema", err)
	}
	if got := err.Error(); !strings.Contains(got, "KeyRegion") {
		t.Errorf("error %q should name the missing column", got)
	}
}

func TestStore_NotFound(t *testing.T) {
	dir := fixture.SalesDir(t)
	store := NewStore(dir)

	if err := os.WriteFile(filepath.Join(filepath.Dir(dir), "outside.parquet"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o700); err != nil {
		t.Fatal(err)
	}

	names := []string{"missing.parquet", "../outside.parquet", "nested", "/etc/hosts"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Load(context.Background(), name); !errors.Is(err, ErrNotFound) {
				t.Errorf("Load(%q) error = %v, want ErrNotFound", name, err)
			}
			if err := store.Stat(name); !errors.Is(err, ErrNotFound) {
				t.Errorf("Stat(%q) error = %v, want ErrNotFound", name, err)
			}
		})
	}

	if err := store.Stat("sales.parquet"); err != nil {
		t.Errorf("Stat(sales.parquet) error = %v", err)
	}
}

func TestStore_MissingDataDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"))
	if err := store.Stat("sales.parquet"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.parquet"), []byte("not parquet at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewStore(dir).Load(context.Background(), "bad.parquet")
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestStore_Timestamps(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	fixture.WriteT(t, dir, "timed.parquet", []fixture.TimedSale{
		{KeyDate: at, KeyStore: "A", Qty: 1.5, Amount: 3},
	})

	table, err := NewStore(dir).Load(context.Background(), "timed.parquet", "KeyDate")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	col, _ := table.Column("KeyDate")
	if col.Type != TypeTimestamp {
		t.Fatalf("KeyDate type = %s, want %s", col.Type, TypeTimestamp)
	}
	got, ok := col.Values[0].(time.Time)
	if !ok || !got.Equal(at) {
		t.Errorf("KeyDate = %#v, want %v", col.Values[0], at)
	}
}

func TestStore_Nulls(t *testing.T) {
	dir := t.TempDir()
	store := "A"
	qty := int64(3)
	fixture.WriteT(t, dir, "nulls.parquet", []fixture.NullableSale{
		{KeyDate: "01/10/2024 09:00 AM", KeyStore: &store, Qty: &qty},
		{KeyDate: "01/11/2024 09:00 AM"},
	})

	table, err := NewStore(dir).Load(context.Background(), "nulls.parquet")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if table.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", table.NumRows())
	}
	row := table.Row(1)
	for _, col := range []string{"KeyStore", "Qty", "Amount"} {
		if row[col] != nil {
			t.Errorf("row 1 %s = %#v, want nil", col, row[col])
		}
	}
	if table.Row(0)["Qty"] != int64(3) {
		t.Errorf("row 0 Qty = %#v, want 3", table.Row(0)["Qty"])
	}
}

func TestStore_Schema(t *testing.T) {
	cols, err := NewStore(fixture.SalesDir(t)).Schema("sales.parquet")
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if len(cols) != 6 {
		t.Fatalf("Schema() returned %d columns, want 6", len(cols))
	}
	if cols[0].Name != "KeyDate" || cols[0].Type != TypeString {
		t.Errorf("first column = %+v", cols[0])
	}
	if cols[5].Name != "Amount" || cols[5].Type != TypeDouble {
		t.Errorf("last column = %+v", cols[5])
	}
}

func TestStore_CanceledContext(t *testing.T) {
	store := NewStore(fixture.SalesDir(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Load(ctx, "sales.parquet"); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestStore_ConcurrentLoads(t *testing.T) {
	store := NewStore(fixture.SalesDir(t))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table, err := store.Load(context.Background(), "sales.parquet", "KeyStore", "Qty")
			if err != nil {
				errs <- err
				return
			}
			// Mutating one result must not leak into another.
			qty, _ := table.Column("Qty")
			qty.Values[0] = int64(-1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Load() error = %v", err)
	}

	table, err := store.Load(context.Background(), "sales.parquet", "Qty")
	if err != nil {
		t.Fatal(err)
	}
	if table.Row(0)["Qty"] != int64(2) {
		t.Errorf("Qty[0] = %v after concurrent mutation, want 2", table.Row(0)["Qty"])
	}
}

func TestNewTable(t *testing.T) {
	_, err := NewTable("t",
		&Column{Name: "a", Values: []any{1, 2}},
		&Column{Name: "b", Values: []any{1}},
	)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("NewTable() with ragged columns error = %v, want ErrCorrupt", err)
	}

	_, err = NewTable("t",
		&Column{Name: "a", Values: []any{1}},
		&Column{Name: "a", Values: []any{1}},
	)
	if !errors.Is(err, ErrSchema) {
		t.Errorf("NewTable() with duplicate columns error = %v, want ErrSchema", err)
	}

	table, err := NewTable("t", &Column{Name: "a", Values: []any{"x", "y"}})
	if err != nil {
		t.Fatal(err)
	}
	rows := table.Rows()
	if len(rows) != 2 || rows[1]["a"] != "y" {
		t.Errorf("Rows() = %v", rows)
	}
}

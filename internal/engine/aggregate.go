package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/vegasq/datamart/internal/query"
)

// Column names every aggregated dataset must provide.
const (
	ColumnKeyDate   = "KeyDate"
	ColumnQty       = "Qty"
	ColumnAmount    = "Amount"
	ColumnAvgAmount = "AvgAmount"
)

// AggregateResult is one group of a range query.
type AggregateResult struct {
	KeyType string
	Key     any
	Qty     float64
	Amount  float64

	// AvgAmount is the mean of Amount/Qty over the rows of the group with a
	// non-zero Qty, or nil when there are none. It is only reported when
	// HasAvg is set.
	AvgAmount *float64
	HasAvg    bool
}

// Columns returns the output column names of r in display order.
func (r AggregateResult) Columns() []string {
	cols := []string{r.KeyType, ColumnQty, ColumnAmount}
	if r.HasAvg {
		cols = append(cols, ColumnAvgAmount)
	}
	return cols
}

// Fields returns r as a column to value map.
func (r AggregateResult) Fields() map[string]any {
	m := map[string]any{
		r.KeyType:    r.Key,
		ColumnQty:    r.Qty,
		ColumnAmount: r.Amount,
	}
	if r.HasAvg {
		if r.AvgAmount != nil {
			m[ColumnAvgAmount] = *r.AvgAmount
		} else {
			m[ColumnAvgAmount] = nil
		}
	}
	return m
}

// MarshalJSON encodes r as an object whose first member is the group key,
// followed by Qty, Amount and, when requested, AvgAmount.
func (r AggregateResult) MarshalJSON() ([]byte, error) {
	fields := r.Fields()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns() {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(fields[col])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", col, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows converts results into column to value maps along with their column
// order, for tabular output.
func Rows(results []AggregateResult) ([]string, []map[string]any) {
	if len(results) == 0 {
		return nil, nil
	}
	rows := make([]map[string]any, len(results))
	for i, r := range results {
		rows[i] = r.Fields()
	}
	return results[0].Columns(), rows
}

// group accumulates the measures of one key.
type group struct {
	key      any
	qty      float64
	amount   float64
	avgSum   float64
	avgCount int
}

func (g *group) add(qty, amount float64) {
	g.qty += qty
	g.amount += amount
	if qty != 0 {
		g.avgSum += amount / qty
		g.avgCount++
	}
}

func (g *group) result(keyType string, withAvg bool) AggregateResult {
	r := AggregateResult{
		KeyType: keyType,
		Key:     g.key,
		Qty:     g.qty,
		Amount:  g.amount,
		HasAvg:  withAvg,
	}
	if withAvg && g.avgCount > 0 {
		avg := g.avgSum / float64(g.avgCount)
		r.AvgAmount = &avg
	}
	return r
}

// grouper collects rows into groups keyed by the value of the group column.
type grouper struct {
	groups map[string]*group
	order  []*group
}

func newGrouper() *grouper {
	return &grouper{groups: make(map[string]*group)}
}

func (g *grouper) add(key any, qty, amount float64) {
	// %#v keeps values of different types apart
	hash := fmt.Sprintf("%#v", key)
	grp, ok := g.groups[hash]
	if !ok {
		grp = &group{key: key}
		g.groups[hash] = grp
		g.order = append(g.order, grp)
	}
	grp.add(qty, amount)
}

func (g *grouper) len() int {
	return len(g.order)
}

// results returns one AggregateResult per group, sorted by key: numerically
// when every key is a number, otherwise by the text form of the key.
func (g *grouper) results(keyType string, withAvg bool) []AggregateResult {
	groups := append([]*group(nil), g.order...)

	numeric := true
	for _, grp := range groups {
		if _, ok := query.ToFloat64(grp.key); !ok {
			numeric = false
			break
		}
	}

	if numeric {
		sort.SliceStable(groups, func(i, j int) bool {
			a, _ := query.ToFloat64(groups[i].key)
			b, _ := query.ToFloat64(groups[j].key)
			return a < b
		})
	} else {
		sort.SliceStable(groups, func(i, j int) bool {
			return FormatKey(groups[i].key) < FormatKey(groups[j].key)
		})
	}

	out := make([]AggregateResult, len(groups))
	for i, grp := range groups {
		out[i] = grp.result(keyType, withAvg)
	}
	return out
}

// FormatKey renders a key value as text, the form key_value filters are
// matched against.
func FormatKey(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(DateLayout)
		}
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// measure converts a Qty or Amount cell to a finite number.
func measure(v any) (float64, bool) {
	n, ok := query.ToFloat64(v)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

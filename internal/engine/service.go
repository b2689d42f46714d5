// Package engine answers dataset queries: raw row retrieval with an optional
// filter, and date-range aggregations grouped by a key column.
//
// A Service holds no per-request state. Every call re-reads the dataset it
// needs, so files replaced on disk are picked up by the next request.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vegasq/datamart/internal/metrics"
	"github.com/vegasq/datamart/internal/query"
	"github.com/vegasq/datamart/internal/reader"
)

// Operation names used in logs and metrics.
const (
	OpGetAll      = "all"
	OpRange       = "range"
	OpTotalAndAvg = "total_avg"
)

// Loader is the dataset access the service depends on. *reader.Store
// implements it.
type Loader interface {
	Stat(name string) error
	Schema(name string) ([]reader.ColumnInfo, error)
	Load(ctx context.Context, name string, columns ...string) (*reader.Table, error)
}

// RangeQuery selects the rows of Dataset dated between StartDate and
// EndDate (inclusive, YYYY-MM-DD) and groups them by the KeyType column.
// When KeyValue is set only rows whose key renders as KeyValue are kept.
type RangeQuery struct {
	Dataset    string
	StartDate  string
	EndDate    string
	KeyType    string
	KeyValue   string
	Cumulative bool
}

// Service runs queries against a Loader.
type Service struct {
	store   Loader
	log     zerolog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger queries are reported to.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics sets the recorder query measurements are sent to.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a service reading datasets from store.
func NewService(store Loader, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Columns returns the schema of the named dataset.
func (s *Service) Columns(ctx context.Context, name string) ([]reader.ColumnInfo, error) {
	cols, err := s.store.Schema(name)
	if err != nil {
		return nil, classify(err)
	}
	return cols, nil
}

// GetAll returns every row of the named dataset, in file order, that
// matches filter. An empty filter matches every row.
func (s *Service) GetAll(ctx context.Context, name, filter string) ([]map[string]any, error) {
	started := s.now()
	rows, scanned, err := s.getAll(ctx, name, strings.TrimSpace(filter))
	err = classify(err)
	s.observe(OpGetAll, started, scanned, err, func(e *zerolog.Event) {
		e.Str("dataset", name).Bool("filtered", filter != "").Int("rows", len(rows))
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) getAll(ctx context.Context, name, filter string) ([]map[string]any, int, error) {
	var expr query.Expression
	if filter != "" {
		schema, err := s.store.Schema(name)
		if err != nil {
			return nil, 0, err
		}
		names := make([]string, len(schema))
		for i, c := range schema {
			names[i] = c.Name
		}
		expr, err = query.ParseFilter(filter, names)
		if err != nil {
			return nil, 0, filterError(err)
		}
	}

	table, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	rows, err := query.ApplyFilter(table.Rows(), expr)
	if err != nil {
		return nil, table.NumRows(), filterError(err)
	}
	return rows, table.NumRows(), nil
}

// QueryByRange sums Qty and Amount per key over the rows in the date range.
func (s *Service) QueryByRange(ctx context.Context, q RangeQuery) ([]AggregateResult, error) {
	return s.aggregate(ctx, OpRange, q, false)
}

// QueryByTotalAndAvg is QueryByRange plus the mean of Amount/Qty per key.
// Rows with a zero Qty count towards the sums but not the mean.
//
// q.Cumulative is accepted for compatibility and does not change the
// result.
func (s *Service) QueryByTotalAndAvg(ctx context.Context, q RangeQuery) ([]AggregateResult, error) {
	return s.aggregate(ctx, OpTotalAndAvg, q, true)
}

func (s *Service) aggregate(ctx context.Context, op string, q RangeQuery, withAvg bool) ([]AggregateResult, error) {
	started := s.now()
	results, scanned, err := s.runRange(ctx, q, withAvg)
	err = classify(err)
	s.observe(op, started, scanned, err, func(e *zerolog.Event) {
		e.Str("dataset", q.Dataset).
			Str("start_date", q.StartDate).
			Str("end_date", q.EndDate).
			Str("key_type", q.KeyType).
			Str("key_value", q.KeyValue).
			Int("groups", len(results))
		if withAvg {
			e.Bool("cumulative", q.Cumulative)
		}
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) runRange(ctx context.Context, q RangeQuery, withAvg bool) ([]AggregateResult, int, error) {
	if err := s.store.Stat(q.Dataset); err != nil {
		return nil, 0, err
	}

	win, err := parseWindow(q.StartDate, q.EndDate)
	if err != nil {
		return nil, 0, err
	}

	switch q.KeyType {
	case "":
		return nil, 0, validationf("key_type is required")
	case ColumnQty, ColumnAmount, ColumnAvgAmount:
		return nil, 0, validationf("key_type %q is an aggregated column", q.KeyType)
	}

	table, err := s.store.Load(ctx, q.Dataset, ColumnKeyDate, q.KeyType, ColumnQty, ColumnAmount)
	if err != nil {
		return nil, 0, err
	}
	dates, _ := table.Column(ColumnKeyDate)
	keys, _ := table.Column(q.KeyType)
	qtys, _ := table.Column(ColumnQty)
	amounts, _ := table.Column(ColumnAmount)

	groups := newGrouper()
	for i := range table.NumRows() {
		at, err := parseKeyDate(dates.Values[i])
		if err != nil {
			return nil, table.NumRows(), validationf("%s: row %d: %v", ColumnKeyDate, i, err)
		}
		if !win.contains(at) {
			continue
		}

		key := keys.Values[i]
		if key == nil {
			continue
		}
		if q.KeyValue != "" && FormatKey(key) != q.KeyValue {
			continue
		}

		qty, ok := measure(qtys.Values[i])
		if !ok {
			return nil, table.NumRows(), validationf("%s: row %d: %v is not a number", ColumnQty, i, qtys.Values[i])
		}
		amount, ok := measure(amounts.Values[i])
		if !ok {
			return nil, table.NumRows(), validationf("%s: row %d: %v is not a number", ColumnAmount, i, amounts.Values[i])
		}
		groups.add(key, qty, amount)
	}

	if groups.len() == 0 {
		return nil, table.NumRows(), validationf("no data for %s between %s and %s", q.Dataset, q.StartDate, q.EndDate)
	}
	return groups.results(q.KeyType, withAvg), table.NumRows(), nil
}

// observe logs and records the outcome of one operation.
func (s *Service) observe(op string, started time.Time, scanned int, err error, fields func(*zerolog.Event)) {
	took := s.now().Sub(started)
	kind := Kind(err)
	s.metrics.ObserveQuery(op, kind, took, scanned)

	var e *zerolog.Event
	switch kind {
	case KindOK:
		e = s.log.Info()
	case KindInternal:
		e = s.log.Error().Err(err)
	default:
		e = s.log.Warn().Err(err)
	}
	e = e.Str("op", op).Str("outcome", kind).Int("scanned", scanned).Dur("took", took)
	fields(e)
	e.Msg("query")
}

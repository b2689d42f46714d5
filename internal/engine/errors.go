package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/vegasq/datamart/internal/query"
	"github.com/vegasq/datamart/internal/reader"
)

var (
	// ErrNotFound is returned when the requested dataset does not exist.
	ErrNotFound = reader.ErrNotFound

	// ErrSchema is returned when a dataset lacks a column the request needs.
	ErrSchema = reader.ErrSchema

	// ErrValidation is returned for malformed request parameters and for
	// dataset contents that cannot be aggregated.
	ErrValidation = errors.New("validation error")

	// ErrInternal is returned for failures the caller cannot correct.
	ErrInternal = errors.New("internal error")
)

// Outcome labels reported by Kind.
const (
	KindOK         = "ok"
	KindNotFound   = "not_found"
	KindSchema     = "schema"
	KindValidation = "validation"
	KindCanceled   = "canceled"
	KindInternal   = "internal"
)

// Kind classifies err into one of the outcome labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrSchema):
		return KindSchema
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// classify makes sure every error leaving the service matches one of the
// package sentinels or a context error.
func classify(err error) error {
	switch Kind(err) {
	case KindOK, KindNotFound, KindSchema, KindValidation, KindCanceled:
		return err
	}
	if errors.Is(err, ErrInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// filterError maps a filter parse or evaluation failure onto the service
// taxonomy.
func filterError(err error) error {
	if errors.Is(err, query.ErrUnknownColumn) {
		return fmt.Errorf("%w: query: %v", ErrSchema, err)
	}
	return fmt.Errorf("%w: query: %v", ErrValidation, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

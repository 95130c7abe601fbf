package service

import (
	"errors"
	"fmt"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// Kind classifies the outcome of a handler.
type Kind int

const (
	KindOK Kind = iota
	KindValidation
	KindNotFound
	KindInfra
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInfra:
		return "infrastructure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Violation is one failed input rule.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result is what every handler returns: a value on success, or a tagged
// failure. Infra failures keep the underlying error for logging only.
type Result[T any] struct {
	Value      T
	Kind       Kind
	Violations []Violation
	// MissingID is set for KindNotFound.
	MissingID string
	Err       error
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Kind: KindOK}
}

// Invalid reports rejected input.
func Invalid[T any](violations ...Violation) Result[T] {
	return Result[T]{Kind: KindValidation, Violations: violations}
}

// NotFound reports that nothing exists under id.
func NotFound[T any](id string) Result[T] {
	return Result[T]{
		Kind:      KindNotFound,
		MissingID: id,
		Err:       fmt.Errorf("trade %s: %w", id, domain.ErrNotFound),
	}
}

// Infra wraps a store, cache or broker failure.
func Infra[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("unknown infrastructure failure")
	}
	return Result[T]{Kind: KindInfra, Err: err}
}

// IsOK reports success.
func (r Result[T]) IsOK() bool { return r.Kind == KindOK }

// Reason is a one-line description of a failed result, empty on success.
func (r Result[T]) Reason() string {
	switch r.Kind {
	case KindOK:
		return ""
	case KindValidation:
		if len(r.Violations) == 0 {
			return "validation failed"
		}
		return fmt.Sprintf("validation failed: %s %s", r.Violations[0].Field, r.Violations[0].Message)
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return r.Kind.String()
	}
}

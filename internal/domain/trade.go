package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade execution.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts a side name into a Side. Matching is exact, so "buy" is
// rejected just like the enum converter on the wire would reject it.
func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidTrade, v)
	}
	return s, nil
}

// Trade is one executed buy or sell. Trades are append-only: once built by
// NewTrade they are persisted exactly once and never changed.
type Trade struct {
	ID          uuid.UUID
	Side        Side
	Quantity    int
	Price       decimal.Decimal
	TotalAmount decimal.Decimal
	ExecutedAt  time.Time
}

// NewTrade builds a trade with a fresh id, an exact total and an execution
// timestamp taken from now. The timestamp is normalised to UTC and truncated
// to microseconds, the resolution of a postgres timestamptz.
func NewTrade(side Side, quantity int, price decimal.Decimal, now time.Time) (Trade, error) {
	if !side.Valid() {
		return Trade{}, fmt.Errorf("%w: unknown side %q", ErrInvalidTrade, side)
	}
	if quantity <= 0 {
		return Trade{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidTrade)
	}
	if !price.IsPositive() {
		return Trade{}, fmt.Errorf("%w: price must be positive", ErrInvalidTrade)
	}

	return Trade{
		ID:          uuid.New(),
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: price.Mul(decimal.NewFromInt(int64(quantity))),
		ExecutedAt:  now.UTC().Truncate(time.Microsecond),
	}, nil
}

// TradeDto is the external representation of a Trade used by the cache and
// the HTTP boundary.
type TradeDto struct {
	ID          uuid.UUID `json:"id"`
	Side        Side      `json:"side"`
	Quantity    int       `json:"quantity"`
	Price       Money     `json:"price"`
	TotalAmount Money     `json:"totalAmount"`
	ExecutedAt  time.Time `json:"executedAt"`
}

// TradeExecutedEvent is the immutable projection of a Trade that is mirrored
// onto the event stream.
type TradeExecutedEvent struct {
	ID          uuid.UUID `json:"id"`
	Side        Side      `json:"side"`
	Quantity    int       `json:"quantity"`
	Price       Money     `json:"price"`
	TotalAmount Money     `json:"totalAmount"`
	ExecutedAt  time.Time `json:"executedAt"`
}

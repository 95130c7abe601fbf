package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeledger/internal/domain"
)

// ExecuteTradeCommand asks for one trade to be recorded.
type ExecuteTradeCommand struct {
	Side     domain.Side
	Quantity int
	Price    decimal.Decimal
}

// Validate implements Validatable.
func (c ExecuteTradeCommand) Validate() []Violation {
	var v []Violation
	if !c.Side.Valid() {
		v = append(v, Violation{Field: "side", Message: fmt.Sprintf("must be %q or %q", domain.SideBuy, domain.SideSell)})
	}
	if c.Quantity <= 0 {
		v = append(v, Violation{Field: "quantity", Message: "must be greater than 0"})
	}
	switch {
	case !c.Price.IsPositive():
		v = append(v, Violation{Field: "price", Message: "must be greater than 0"})
	case !c.Price.Equal(c.Price.Round(domain.MoneyScale)):
		v = append(v, Violation{Field: "price", Message: "must have at most 2 decimal places"})
	case c.Quantity > 0 && c.Price.Mul(decimal.NewFromInt(int64(c.Quantity))).GreaterThan(domain.MaxMoney):
		v = append(v, Violation{Field: "price", Message: "total amount must not exceed " + domain.MaxMoney.StringFixed(domain.MoneyScale)})
	}
	return v
}

// GetTradeByIDQuery looks up one trade.
type GetTradeByIDQuery struct {
	ID uuid.UUID
}

// Validate implements Validatable.
func (q GetTradeByIDQuery) Validate() []Violation {
	if q.ID == uuid.Nil {
		return []Violation{{Field: "id", Message: "must not be empty"}}
	}
	return nil
}

// GetPagedTradesQuery asks for one page of trades, newest first.
type GetPagedTradesQuery struct {
	PageNumber int
	PageSize   int
}

// Validate implements Validatable.
func (q GetPagedTradesQuery) Validate() []Violation {
	var v []Violation
	if q.PageNumber <= 0 {
		v = append(v, Violation{Field: "pageNumber", Message: "must be greater than 0"})
	}
	if q.PageSize <= 0 || q.PageSize > domain.MaxPageSize {
		v = append(v, Violation{Field: "pageSize", Message: fmt.Sprintf("must be between 1 and %d", domain.MaxPageSize)})
	}
	return v
}

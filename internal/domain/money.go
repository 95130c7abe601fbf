package domain

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by prices and totals.
const MoneyScale = 2

// MaxMoney is the largest amount a numeric(9,2) column can hold.
var MaxMoney = decimal.RequireFromString("9999999.99")

// Money is a fixed-point amount with two fractional digits on the wire. It
// marshals as a bare JSON number ("50.00") and accepts either a number or a
// quoted string when decoding.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MustMoney parses s and panics on malformed input. Intended for constants
// and tests.
func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

// MarshalJSON renders the amount with exactly MoneyScale fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(MoneyScale)), nil
}

// UnmarshalJSON accepts 50, 50.00 and "50.00".
func (m *Money) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("money: null is not a valid amount")
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.Decimal = d
	return nil
}

// Equal compares the numeric values, ignoring representation scale.
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

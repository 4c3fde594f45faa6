// Package money provides fixed-point monetary values and the arithmetic
// sanctioned for order totals. All amounts are decimal; float summation of
// currency is not supported anywhere in the engine.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch occurs when two amounts of different currencies meet.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is an amount tagged with an ISO 4217 currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money value.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add sums two amounts of the same currency.
func Add(a, b Money) (Money, error) {
	if a.Currency != b.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Money{Amount: a.Amount.Add(b.Amount), Currency: a.Currency}, nil
}

// Scale multiplies the amount by a factor and rounds half-to-even to the
// currency's minor unit.
func Scale(m Money, factor decimal.Decimal) Money {
	return Money{
		Amount:   m.Amount.Mul(factor).RoundBank(MinorUnits(m.Currency)),
		Currency: m.Currency,
	}
}

// Convert multiplies the amount by a rate and relabels the currency. This is
// the only cross-currency operation; Add never converts implicitly.
func Convert(m Money, rate decimal.Decimal, toCurrency string) Money {
	return Money{
		Amount:   m.Amount.Mul(rate).RoundBank(MinorUnits(toCurrency)),
		Currency: toCurrency,
	}
}

// Equal reports whether two values carry the same currency and amount.
func Equal(a, b Money) bool {
	return a.Currency == b.Currency && a.Amount.Equal(b.Amount)
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// String renders the amount with its currency code, e.g. "2600.00 TZS".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(MinorUnits(m.Currency)), m.Currency)
}

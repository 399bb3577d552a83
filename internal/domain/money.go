package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary amount, always normalised to two decimal
// places (round half-up) at construction. Totals persisted and compared
// through this type cannot drift the way float accumulation does, and a
// single canonical string form ("65.00", never "65.0") keeps equality checks
// unambiguous across the store, the wire, and the payment provider.
type Money struct {
	amount decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{amount: decimal.Zero}

// ParseMoney parses a decimal string into a Money, rounding to two places.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("domain: parse money %q: %w", s, err)
	}
	return Money{amount: d.Round(2)}, nil
}

// MustMoney is ParseMoney that panics on error. For constants, seeds and tests.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromDecimal normalises an arbitrary decimal into a Money.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{amount: d.Round(2)}
}

func (m Money) Add(o Money) Money {
	return Money{amount: m.amount.Add(o.amount)}
}

// MulInt scales the amount by a unit count. Quantity times a 2-dp unit price
// stays exact, so no rounding is applied here.
func (m Money) MulInt(n int) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(int64(n)))}
}

// MulRate applies a fractional rate (e.g. a tax rate of 0.10) and rounds the
// result back to two places.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate).Round(2)}
}

func (m Money) Equal(o Money) bool {
	return m.amount.Equal(o.amount)
}

func (m Money) LessThan(o Money) bool {
	return m.amount.LessThan(o.amount)
}

// Matches reports whether the given decimal string denotes exactly the same
// amount as m, after normalisation: "65.0" matches "65.00", while "65.001"
// matches nothing representable in canonical form. Unparseable input never
// matches. This is the comparison settlement uses against oracle-reported
// amounts, deliberately strict per the payment-integrity rules.
func (m Money) Matches(s string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return m.amount.Equal(d)
}

// String returns the canonical two-decimal form, e.g. "65.00".
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// MarshalJSON encodes the canonical string form.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

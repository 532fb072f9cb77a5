package money

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for every amount.
const Scale = 2

// Money is a fixed-point amount stored as integer cents.
type Money struct {
	cents int64
}

// MaxCents bounds every amount to the NUMERIC(12,2) columns that store it.
const MaxCents int64 = 999999999999

// Zero is the zero amount.
var Zero = Money{}

var maxAmount = decimal.New(MaxCents, -Scale)

// FromCents builds an amount from integer cents.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// FromDecimal rounds d half-up to cents. Amounts beyond ±9999999999.99 are
// rejected.
func FromDecimal(d decimal.Decimal) (Money, error) {
	rounded := d.Round(Scale)
	if rounded.Abs().GreaterThan(maxAmount) {
		return Zero, fmt.Errorf("money %s out of range", d.String())
	}
	return Money{cents: rounded.Shift(Scale).IntPart()}, nil
}

// Parse reads a decimal string such as "1000", "400.5" or "33.335".
func Parse(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Zero, fmt.Errorf("parse money: empty value")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Zero, fmt.Errorf("parse money %q: %w", raw, err)
	}
	m, err := FromDecimal(d)
	if err != nil {
		return Zero, fmt.Errorf("parse money %q: %w", raw, err)
	}
	return m, nil
}

// MustParse is Parse for constants and tests; it panics on malformed input.
func MustParse(raw string) Money {
	m, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Cents returns the raw integer amount.
func (m Money) Cents() int64 { return m.cents }

// Decimal returns the amount as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.cents, -Scale)
}

// String formats the amount with exactly two decimals.
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{cents: m.cents + o.cents} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{cents: m.cents - o.cents} }

// Mul multiplies by an integer factor.
func (m Money) Mul(n int64) Money { return Money{cents: m.cents * n} }

// Cmp compares m with o returning -1, 0 or 1.
func (m Money) Cmp(o Money) int {
	switch {
	case m.cents < o.cents:
		return -1
	case m.cents > o.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(o Money) bool              { return m.cents == o.cents }
func (m Money) LessThan(o Money) bool           { return m.cents < o.cents }
func (m Money) GreaterThan(o Money) bool        { return m.cents > o.cents }
func (m Money) LessThanOrEqual(o Money) bool    { return m.cents <= o.cents }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.cents >= o.cents }
func (m Money) IsZero() bool                    { return m.cents == 0 }
func (m Money) IsPositive() bool                { return m.cents > 0 }
func (m Money) IsNegative() bool                { return m.cents < 0 }

// MultiplyByRatio returns m * num / den rounded half-up to cents.
func (m Money) MultiplyByRatio(num, den int64) (Money, error) {
	if den == 0 {
		return Zero, fmt.Errorf("multiply by ratio: zero denominator")
	}
	scaled := decimal.NewFromInt(m.cents).Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den))
	return Money{cents: scaled.Round(0).IntPart()}, nil
}

// SplitEvenly divides total into n parts that sum exactly to total. Every part
// but the last is total/n rounded half-up; the last absorbs the residual cents.
func SplitEvenly(total Money, n int) ([]Money, error) {
	if n <= 0 {
		return nil, fmt.Errorf("split evenly: part count must be positive, got %d", n)
	}
	share, err := total.MultiplyByRatio(1, int64(n))
	if err != nil {
		return nil, err
	}
	parts := make([]Money, n)
	for i := 0; i < n-1; i++ {
		parts[i] = share
	}
	parts[n-1] = total.Sub(share.Mul(int64(n - 1)))
	return parts, nil
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Percent returns part/whole*100 rounded half-up to two places, or 0 when
// whole is zero. A part short of whole never rounds up to 100.
func Percent(part, whole Money) float64 {
	if whole.IsZero() {
		return 0
	}
	hundred := decimal.NewFromInt(100)
	ratio := decimal.NewFromInt(part.cents).Mul(hundred).Div(decimal.NewFromInt(whole.cents)).Round(2)
	if part.LessThan(whole) && ratio.GreaterThanOrEqual(hundred) {
		ratio = decimal.RequireFromString("99.99")
	}
	return ratio.InexactFloat64()
}

// MarshalJSON renders the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*m = Zero
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the amount as a NUMERIC literal.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan reads NUMERIC columns returned by lib/pq as text, and numeric
// fallbacks from other drivers.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Zero
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*m = parsed
	case int64:
		parsed, err := FromDecimal(decimal.NewFromInt(v))
		if err != nil {
			return err
		}
		*m = parsed
	case float64:
		parsed, err := FromDecimal(decimal.NewFromFloat(v))
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("scan money: unsupported type %T", src)
	}
	return nil
}

package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundsHalfUp(t *testing.T) {
	cases := map[string]int64{
		"1000":    100000,
		"400.5":   40050,
		"33.335":  3334,
		"33.334":  3333,
		"0.005":   1,
		"-10.005": -1001,
	}
	for raw, cents := range cases {
		m, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, cents, m.Cents(), raw)
	}

	_, err := Parse("abc")
	require.Error(t, err)
	_, err = Parse("  ")
	require.Error(t, err)
}

func TestParseRejectsAmountsBeyondColumnRange(t *testing.T) {
	m, err := Parse("9999999999.99")
	require.NoError(t, err)
	assert.Equal(t, MaxCents, m.Cents())

	m, err = Parse("-9999999999.994")
	require.NoError(t, err)
	assert.Equal(t, -MaxCents, m.Cents())

	for _, raw := range []string{
		"10000000000",
		"9999999999.995",
		"-10000000000.00",
		"184467440737095516.17",
		"92233720368547758.08",
		"100000000000000000000",
	} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}

	var payload struct {
		A Money `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": 184467440737095516.17}`), &payload))
	assert.Error(t, json.Unmarshal([]byte(`{"a": "1e20"}`), &payload))

	var scanned Money
	assert.Error(t, scanned.Scan(int64(1_000_000_000_000)))
	assert.Error(t, scanned.Scan([]byte("99999999999.00")))
}

func TestSplitEvenlyReconcilesToTotal(t *testing.T) {
	parts, err := SplitEvenly(MustParse("100.00"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"33.33", "33.33", "33.34"}, stringsOf(parts))

	parts, err = SplitEvenly(MustParse("200.00"), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"66.67", "66.67", "66.66"}, stringsOf(parts))

	for _, total := range []string{"0.01", "0.02", "999.99", "1234.57", "600.00", "0.00"} {
		for n := 1; n <= 7; n++ {
			parts, err := SplitEvenly(MustParse(total), n)
			require.NoError(t, err)
			require.Len(t, parts, n)
			assert.Equal(t, MustParse(total), Sum(parts...), "%s/%d", total, n)
		}
	}

	_, err = SplitEvenly(MustParse("10"), 0)
	require.Error(t, err)
}

func TestMultiplyByRatio(t *testing.T) {
	m, err := MustParse("10.00").MultiplyByRatio(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "3.33", m.String())

	m, err = MustParse("0.05").MultiplyByRatio(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "0.03", m.String())

	_, err = MustParse("1").MultiplyByRatio(1, 0)
	require.Error(t, err)
}

func TestArithmeticAndComparison(t *testing.T) {
	a := MustParse("400.00")
	b := MustParse("600.00")
	assert.Equal(t, "1000.00", a.Add(b).String())
	assert.Equal(t, "-200.00", a.Sub(b).String())
	assert.True(t, a.LessThan(b))
	assert.True(t, b.GreaterThanOrEqual(a))
	assert.Equal(t, 0, a.Cmp(FromCents(40000)))
	assert.True(t, Zero.IsZero())
	assert.True(t, a.Sub(b).IsNegative())
	fromDecimal, err := FromDecimal(decimal.RequireFromString("12.345"))
	require.NoError(t, err)
	assert.True(t, fromDecimal.Equal(FromCents(1235)))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 40.0, Percent(MustParse("400"), MustParse("1000")))
	assert.Equal(t, 33.33, Percent(MustParse("1"), MustParse("3")))
	assert.Equal(t, 0.0, Percent(MustParse("1"), Zero))
	assert.Equal(t, 100.0, Percent(MustParse("1000"), MustParse("1000")))
	assert.Equal(t, 99.99, Percent(MustParse("99999.99"), MustParse("100000.00")))
	assert.Equal(t, 99.99, Percent(MustParse("9999999999.98"), MustParse("9999999999.99")))
}

func TestJSONRoundTripAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 400.5, "b": "300.25"}`), &payload))
	assert.Equal(t, int64(40050), payload.A.Cents())
	assert.Equal(t, int64(30025), payload.B.Cents())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 400.50, "b": 300.25}`, string(out))
}

func TestScanAndValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan([]byte("1000.00")))
	assert.Equal(t, int64(100000), m.Cents())
	require.NoError(t, m.Scan("12.5"))
	assert.Equal(t, int64(1250), m.Cents())
	require.NoError(t, m.Scan(int64(3)))
	assert.Equal(t, int64(300), m.Cents())
	require.NoError(t, m.Scan(nil))
	assert.True(t, m.IsZero())
	require.Error(t, m.Scan(true))

	v, err := MustParse("7.1").Value()
	require.NoError(t, err)
	assert.Equal(t, "7.10", v)
}

func stringsOf(parts []Money) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p.String()
	}
	return out
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoneyNormalises(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"65.0", "65.00"},
		{"65", "65.00"},
		{" 65.00 ", "65.00"},
		{"0.1", "0.10"},
		{"10.005", "10.01"}, // round half-up to two places
	}
	for _, tt := range tests {
		m, err := ParseMoney(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, m.String(), tt.in)
	}

	_, err := ParseMoney("not-a-number")
	require.Error(t, err)
}

func TestMoneyMatches(t *testing.T) {
	total := MustMoney("65.00")

	assert.True(t, total.Matches("65.00"))
	assert.True(t, total.Matches("65.0"), "formatting difference must normalise equal")
	assert.True(t, total.Matches("65"))
	assert.True(t, total.Matches(" 65.00 "))

	assert.False(t, total.Matches("64.99"))
	assert.False(t, total.Matches("65.001"), "sub-cent tampering must not round into a match")
	assert.False(t, total.Matches("650.0"))
	assert.False(t, total.Matches(""))
	assert.False(t, total.Matches("sixty-five"))
}

func TestMoneyArithmetic(t *testing.T) {
	price := MustMoney("25.00")

	assert.Equal(t, "50.00", price.MulInt(2).String())
	assert.Equal(t, "35.00", price.Add(MustMoney("10.00")).String())

	rate := decimal.RequireFromString("0.10")
	assert.Equal(t, "5.00", MustMoney("50.00").MulRate(rate).String())

	// 33.33 * 0.15 = 4.9995 → rounds to 5.00
	fifteen := decimal.RequireFromString("0.15")
	assert.Equal(t, "5.00", MustMoney("33.33").MulRate(fifteen).String())

	assert.True(t, MustMoney("9.99").LessThan(MustMoney("10.00")))
	assert.False(t, MustMoney("10.00").LessThan(MustMoney("10.00")))
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(MustMoney("65.0"))
	require.NoError(t, err)
	assert.Equal(t, `"65.00"`, string(b))

	var fromString Money
	require.NoError(t, json.Unmarshal([]byte(`"12.5"`), &fromString))
	assert.Equal(t, "12.50", fromString.String())

	var fromNumber Money
	require.NoError(t, json.Unmarshal([]byte(`12.5`), &fromNumber))
	assert.Equal(t, "12.50", fromNumber.String())
}

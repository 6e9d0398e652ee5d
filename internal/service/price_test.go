package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	n, err := ParsePrice("12 500 ₽")
	require.NoError(t, err)
	assert.Equal(t, 12500, n)

	assert.Equal(t, 0, ParsePriceOrZero("abc"))
	assert.Equal(t, 1500, ParsePriceOrZero(" 1 500 "))
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("1,5")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.5").Equal(q))

	_, err = ParseQuantity("0")
	assert.ErrorIs(t, err, ErrNotPositive)
	_, err = ParseQuantity("-2")
	assert.ErrorIs(t, err, ErrNotPositive)
	_, err = ParseQuantity("много")
	assert.Error(t, err)
}

func TestParseNonNegative(t *testing.T) {
	d, err := ParseNonNegative("0")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseNonNegative("-1")
	assert.ErrorIs(t, err, ErrNegative)
}

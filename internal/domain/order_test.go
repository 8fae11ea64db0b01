package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 7, 15, 30, 0, 0, time.UTC)

	pattern := regexp.MustCompile(`^EDV-20260307-\d{5}$`)
	for i := 0; i < 50; i++ {
		number := NewOrderNumber("EDV", now)
		require.Regexp(t, pattern, number)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10.005", "10.01"},
		{"10.004", "10"},
		{"2.675", "2.68"},
		{"100", "100"},
	}

	for _, tc := range cases {
		in, err := decimal.NewFromString(tc.in)
		require.NoError(t, err)
		want, err := decimal.NewFromString(tc.want)
		require.NoError(t, err)

		assert.True(t, Round2(in).Equal(want), "Round2(%s) = %s, want %s", tc.in, Round2(in), tc.want)
	}
}

func TestComputeTotals(t *testing.T) {
	taxRate := decimal.NewFromFloat(0.15)

	t.Run("standard shipping", func(t *testing.T) {
		subtotal := decimal.NewFromInt(100)
		shipping := decimal.NewFromInt(5)

		tax, total := ComputeTotals(subtotal, shipping, taxRate)

		assert.True(t, tax.Equal(decimal.NewFromInt(15)), tax.String())
		assert.True(t, total.Equal(decimal.NewFromInt(120)), total.String())
	})

	t.Run("tax rounds to cents", func(t *testing.T) {
		subtotal := decimal.NewFromFloat(10.03)
		shipping := decimal.Zero

		tax, total := ComputeTotals(subtotal, shipping, taxRate)

		// 10.03 * 0.15 = 1.5045, rounds half up to 1.50
		assert.True(t, tax.Equal(decimal.NewFromFloat(1.50)), tax.String())
		assert.True(t, total.Equal(decimal.NewFromFloat(11.53)), total.String())
	})
}

func TestShippingMethods(t *testing.T) {
	standard, ok := ShippingMethodByID("standard")
	require.True(t, ok)
	assert.True(t, standard.Price.Equal(decimal.NewFromInt(5)))

	express, ok := ShippingMethodByID("express")
	require.True(t, ok)
	assert.True(t, express.Price.Equal(decimal.NewFromInt(10)))

	pickup, ok := ShippingMethodByID("pickup")
	require.True(t, ok)
	assert.True(t, pickup.Price.IsZero())

	_, ok = ShippingMethodByID("drone")
	assert.False(t, ok)
}

package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSettlementValue(t *testing.T) {
	p := Product{
		UnitPrice:  dec("100"),
		Quantity:   dec("2"),
		Commission: dec("10"),
	}

	// (100 × 2) × 1.16 + 10
	assert.True(t, p.SettlementValue(dec("0.16")).Equal(dec("242")))
	// Zero tax leaves gross plus commission.
	assert.True(t, p.SettlementValue(dec("0")).Equal(dec("210")))
}

func TestSettlementValueFractionalQuantity(t *testing.T) {
	p := Product{
		UnitPrice:  dec("19.99"),
		Quantity:   dec("3"),
		Commission: dec("1.50"),
	}

	// 59.97 × 1.1 + 1.50 = 67.467
	assert.True(t, p.SettlementValue(dec("0.1")).Equal(dec("67.467")))
}

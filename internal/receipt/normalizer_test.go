package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMerchant_Known(t *testing.T) {
	tests := []struct {
		raw      string
		name     string
		category string
	}{
		{"WOOLWORTHS 1234 SYDNEY", "Woolworths", CategoryFood},
		{"eftpos MCDONALDS", "McDonald's", CategoryFood},
		{"UBER *TRIP 88812345", "Uber", CategoryTransport},
		{"paypal *Netflix.com", "Netflix", CategoryEntertainment},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := NormalizeMerchant(tt.raw)
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, tt.category, got.CategoryID)
		})
	}
}

func TestNormalizeMerchant_KeywordFallback(t *testing.T) {
	got := NormalizeMerchant("CORNER CAFE 5512")
	assert.Equal(t, "Corner Cafe", got.Name)
	assert.Equal(t, CategoryFood, got.CategoryID)
}

func TestNormalizeMerchant_Unknown(t *testing.T) {
	got := NormalizeMerchant("POS SOME OBSCURE VENDOR PTY")
	assert.Equal(t, "Some Obscure Vendor", got.Name)
	assert.Empty(t, got.CategoryID)
}

func TestNormalizeMerchant_CleansJunk(t *testing.T) {
	got := NormalizeMerchant("visa SHELL ##4417889 AU")
	assert.Equal(t, "Shell", got.Name)
	assert.Equal(t, CategoryTransport, got.CategoryID)
}

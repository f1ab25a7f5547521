package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBreakdown_Balanced(t *testing.T) {
	tests := []struct {
		name      string
		breakdown Breakdown
		want      bool
	}{
		{
			name: "sums exactly",
			breakdown: Breakdown{
				Subtotal: decimal.RequireFromString("150"),
				Shipping: decimal.RequireFromString("25"),
				Tax:      decimal.RequireFromString("7.5"),
				Total:    decimal.RequireFromString("182.5"),
			},
			want: true,
		},
		{
			name: "total off by a cent",
			breakdown: Breakdown{
				Subtotal: decimal.RequireFromString("150"),
				Shipping: decimal.RequireFromString("25"),
				Tax:      decimal.RequireFromString("7.5"),
				Total:    decimal.RequireFromString("182.51"),
			},
			want: false,
		},
		{
			name: "negative shipping",
			breakdown: Breakdown{
				Subtotal: decimal.RequireFromString("100"),
				Shipping: decimal.RequireFromString("-5"),
				Tax:      decimal.RequireFromString("5"),
				Total:    decimal.RequireFromString("100"),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.breakdown.Balanced())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "182.50", FormatAmount(decimal.RequireFromString("182.5")))
	assert.Equal(t, "200.00", FormatAmount(decimal.NewFromInt(200)))
	assert.Equal(t, "0.10", FormatAmount(decimal.RequireFromString("0.1")))
}

package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmountToCents(t *testing.T) {
	tests := []struct {
		amount float64
		cents  int64
	}{
		{19.99, 1999},
		{850, 85000},
		{0.1, 10},
		{1700.50, 170050},
		{0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.cents, amountToCents(tt.amount), "amount %v", tt.amount)
	}
}

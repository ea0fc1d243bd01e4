package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/pricing"
)

func TestApplyPromo(t *testing.T) {
	e := newEngine(t)

	tests := []struct {
		name     string
		code     string
		price    string
		valid    bool
		discount string
		final    string
		waives   bool
		message  string
	}{
		{"unknown code", "BOGUS", "400", false, "0", "400", false, pricing.MsgInvalidPromo},
		{"below minimum", "SAVE20", "400", false, "0", "400", false, "This code requires a minimum purchase of $500.00."},
		{"percentage", "save20", "500", true, "100", "400", false, "20% discount applied!"},
		{"percentage without minimum", "WELCOME10", "59", true, "5.9", "53.1", false, "10% discount applied!"},
		{"fixed", "Flat50Off", "300", true, "50", "250", false, "$50.00 discount applied!"},
		{"free shipping", "FREESHIP", "250", true, "0", "250", true, "Free shipping applied!"},
		{"free shipping below minimum", "FREESHIP", "199.99", false, "0", "199.99", false, "This code requires a minimum purchase of $200.00."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := e.ApplyPromo(tc.code, d(tc.price))
			require.Equal(t, tc.valid, got.Valid)
			require.Equal(t, tc.waives, got.WaivesShipping)
			require.Equal(t, tc.message, got.Message)
			requireMoney(t, tc.discount, got.DiscountAmount)
			requireMoney(t, tc.final, got.FinalPrice)
			requireMoney(t, got.FinalPrice.Add(got.DiscountAmount).String(), d(tc.price))
		})
	}
}

package pricing

import (
	"fmt"
	"strings"
)

// PromoResult is the outcome of applying a promo code. A free-shipping code
// leaves DiscountAmount at zero and sets WaivesShipping; the caller is
// responsible for dropping shipping from the total.
type PromoResult struct {
	Valid          bool   `json:"valid"`
	Message        string `json:"message"`
	DiscountAmount Money  `json:"discountAmount"`
	FinalPrice     Money  `json:"finalPrice"`
	WaivesShipping bool   `json:"waivesShipping"`
}

// MsgInvalidPromo is the message for an unknown code.
const MsgInvalidPromo = "Invalid promotional code."

// ApplyPromo looks up code case-insensitively and applies it to price.
func (e *Engine) ApplyPromo(code string, price Money) PromoResult {
	rejected := PromoResult{DiscountAmount: Zero, FinalPrice: price}

	promo, ok := e.tables.PromoCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		rejected.Message = MsgInvalidPromo
		return rejected
	}
	if price.LessThan(promo.MinPurchase) {
		rejected.Message = fmt.Sprintf("This code requires a minimum purchase of %s.", e.format(promo.MinPurchase))
		return rejected
	}

	res := PromoResult{Valid: true, DiscountAmount: Zero}
	switch promo.Type {
	case PromoPercentage:
		res.DiscountAmount = price.Mul(promo.Value)
		res.Message = fmt.Sprintf("%s%% discount applied!", promo.Value.Shift(2).String())
	case PromoFixed:
		res.DiscountAmount = promo.Value
		res.Message = fmt.Sprintf("%s discount applied!", e.format(promo.Value))
	case PromoFreeShipping:
		res.WaivesShipping = true
		res.Message = "Free shipping applied!"
	}
	res.FinalPrice = price.Sub(res.DiscountAmount)
	return res
}

func (e *Engine) format(amount Money) string {
	s, err := Format(amount, e.tables.Currency, e.tables.Locale)
	if err != nil {
		return amount.StringFixed(2)
	}
	return s
}

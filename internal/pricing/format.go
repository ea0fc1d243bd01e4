package pricing

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Format renders amount for display in currencyCode using locale's symbol and
// digit grouping, rounded to the currency's standard scale. It never feeds
// back into calculations.
func Format(amount Money, currencyCode, locale string) (string, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return "", fmt.Errorf("pricing: currency %q: %w", currencyCode, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("pricing: locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	rounded := amount.Round(int32(scale))

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	value, _ := rounded.Float64()

	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.Symbol(unit))
	digits := p.Sprint(number.Decimal(value, number.Scale(scale)))
	return sign + symbol + digits, nil
}

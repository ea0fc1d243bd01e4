package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-configurator/internal/catalog"
)

// Money is an exact decimal amount in the catalog currency.
type Money = decimal.Decimal

// Zero is the additive identity.
var Zero = decimal.Zero

// Selection is the set of options chosen for a product. Nil Color or
// Material means nothing is selected in that group.
type Selection struct {
	Color    *catalog.Option
	Material *catalog.Option
	Features []catalog.Option
}

// BasePrice is the product base price plus the prices of every selected
// option. A nil product prices at zero.
func BasePrice(product *catalog.Product, sel Selection) Money {
	if product == nil {
		return Zero
	}
	total := product.BasePrice
	if sel.Color != nil {
		total = total.Add(sel.Color.Price)
	}
	if sel.Material != nil {
		total = total.Add(sel.Material.Price)
	}
	for _, f := range sel.Features {
		total = total.Add(f.Price)
	}
	return total
}

package pricing

import (
	"strings"

	"github.com/noah-isme/backend-configurator/internal/catalog"
)

// Discount is the volume discount applied to a price.
type Discount struct {
	Rate      Money `json:"rate"`
	Amount    Money `json:"amount"`
	Threshold Money `json:"threshold"`
}

// TaxLine is the tax charged on a price.
type TaxLine struct {
	Rate   Money `json:"rate"`
	Amount Money `json:"amount"`
}

// Breakdown itemises a total. Every field is populated even when a stage is
// disabled.
type Breakdown struct {
	BasePrice Money    `json:"basePrice"`
	Discount  Discount `json:"discount"`
	Subtotal  Money    `json:"subtotal"`
	Tax       TaxLine  `json:"tax"`
	Shipping  Money    `json:"shipping"`
	Total     Money    `json:"total"`
}

// Options controls Total. The zero value prices the DEFAULT region with
// standard shipping and every stage enabled.
type Options struct {
	Region          string `json:"region,omitempty"`
	ShippingMethod  string `json:"shippingMethod,omitempty"`
	DisableDiscount bool   `json:"disableDiscount,omitempty"`
	DisableTax      bool   `json:"disableTax,omitempty"`
	DisableShipping bool   `json:"disableShipping,omitempty"`
}

// Engine evaluates prices against a fixed set of Tables. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	tables Tables
}

// NewEngine validates tables and returns an engine over them.
func NewEngine(tables Tables) (*Engine, error) {
	if err := tables.normalize(); err != nil {
		return nil, err
	}
	return &Engine{tables: tables}, nil
}

// NewDefaultEngine returns an engine over the embedded reference tables.
func NewDefaultEngine() (*Engine, error) {
	tables, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return &Engine{tables: tables}, nil
}

// Currency is the ISO code prices are expressed in.
func (e *Engine) Currency() string { return e.tables.Currency }

// Locale is the display locale used for messages.
func (e *Engine) Locale() string { return e.tables.Locale }

func normRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return DefaultRegion
	}
	return region
}

// Region maps region onto a key the tables know. Blank regions are DEFAULT
// and regions without any table entry collapse to INTERNATIONAL, so the result
// is drawn from a fixed set.
func (e *Engine) Region(region string) string {
	key := normRegion(region)
	if _, ok := e.tables.TaxRates[key]; ok {
		return key
	}
	if _, ok := e.tables.ShippingRates[key]; ok {
		return key
	}
	if _, ok := e.tables.PaymentMethods.Regional[key]; ok {
		return key
	}
	return InternationalRegion
}

// VolumeDiscount selects the highest tier whose threshold does not exceed price.
func (e *Engine) VolumeDiscount(price Money) Discount {
	for _, tier := range e.tables.DiscountTiers {
		if price.GreaterThanOrEqual(tier.Threshold) {
			return Discount{Rate: tier.Rate, Amount: price.Mul(tier.Rate), Threshold: tier.Threshold}
		}
	}
	return Discount{Rate: Zero, Amount: Zero, Threshold: Zero}
}

// Tax applies the region's rate to price, falling back to the DEFAULT rate.
func (e *Engine) Tax(price Money, region string) TaxLine {
	rate, ok := e.tables.TaxRates[normRegion(region)]
	if !ok {
		rate = e.tables.TaxRates[DefaultRegion]
	}
	return TaxLine{Rate: rate, Amount: price.Mul(rate)}
}

func (e *Engine) bucket(region string) map[string]Money {
	if b, ok := e.tables.ShippingRates[normRegion(region)]; ok {
		return b
	}
	return e.tables.ShippingRates[InternationalRegion]
}

// Shipping returns the flat rate for region and method plus the product's
// shipping adjustment. Unknown regions use the INTERNATIONAL bucket and
// unknown methods the bucket's standard rate.
func (e *Engine) Shipping(product *catalog.Product, region, method string) Money {
	b := e.bucket(region)
	cost, ok := b[strings.ToLower(strings.TrimSpace(method))]
	if !ok {
		cost = b[StandardMethod]
	}
	if product != nil && product.ShippingAdjustment != nil {
		cost = cost.Add(*product.ShippingAdjustment)
	}
	return cost
}

// Total runs the pipeline base, discount, subtotal, tax on subtotal,
// shipping and total.
func (e *Engine) Total(product *catalog.Product, sel Selection, opts Options) Breakdown {
	base := BasePrice(product, sel)

	discount := Discount{Rate: Zero, Amount: Zero, Threshold: Zero}
	if !opts.DisableDiscount {
		discount = e.VolumeDiscount(base)
	}
	subtotal := base.Sub(discount.Amount)

	tax := TaxLine{Rate: Zero, Amount: Zero}
	if !opts.DisableTax {
		tax = e.Tax(subtotal, opts.Region)
	}

	shipping := Zero
	if !opts.DisableShipping {
		shipping = e.Shipping(product, opts.Region, opts.ShippingMethod)
	}

	return Breakdown{
		BasePrice: base,
		Discount:  discount,
		Subtotal:  subtotal,
		Tax:       tax,
		Shipping:  shipping,
		Total:     subtotal.Add(tax.Amount).Add(shipping),
	}
}

// ShippingMethod is a shipping option with its price for a region.
type ShippingMethod struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Money  `json:"price"`
}

// ShippingMethods lists the configured methods priced for region. Methods
// missing from the region's bucket are priced at its standard rate.
func (e *Engine) ShippingMethods(region string) []ShippingMethod {
	b := e.bucket(region)
	out := make([]ShippingMethod, 0, len(e.tables.ShippingMethods))
	for _, m := range e.tables.ShippingMethods {
		price, ok := b[m.ID]
		if !ok {
			price = b[StandardMethod]
		}
		out = append(out, ShippingMethod{ID: m.ID, Name: m.Name, Price: price})
	}
	return out
}

// PaymentMethods lists the common methods followed by region-specific ones.
func (e *Engine) PaymentMethods(region string) []PaymentMethod {
	regional := e.tables.PaymentMethods.Regional[normRegion(region)]
	out := make([]PaymentMethod, 0, len(e.tables.PaymentMethods.Common)+len(regional))
	out = append(out, e.tables.PaymentMethods.Common...)
	return append(out, regional...)
}

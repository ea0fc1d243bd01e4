package pricing

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Region keys with special meaning in the lookup tables.
const (
	DefaultRegion       = "DEFAULT"
	InternationalRegion = "INTERNATIONAL"
	StandardMethod      = "standard"
)

// PromoType classifies how a promo code adjusts a price.
type PromoType string

const (
	PromoPercentage   PromoType = "percentage"
	PromoFixed        PromoType = "fixed"
	PromoFreeShipping PromoType = "free-shipping"
)

// Tier is a volume discount step: Rate applies from Threshold upwards.
type Tier struct {
	Threshold Money `json:"threshold" yaml:"threshold"`
	Rate      Money `json:"rate" yaml:"rate"`
}

// Promo describes a promotional code.
type Promo struct {
	Type        PromoType `json:"type" yaml:"type"`
	Value       Money     `json:"value" yaml:"value"`
	MinPurchase Money     `json:"minPurchase" yaml:"minPurchase"`
}

// MethodInfo names a shipping method.
type MethodInfo struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// PaymentMethod is an accepted way to pay.
type PaymentMethod struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Icon string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// PaymentTable lists globally available methods plus per-region additions.
type PaymentTable struct {
	Common   []PaymentMethod            `yaml:"common"`
	Regional map[string][]PaymentMethod `yaml:"regional"`
}

// Tables holds every regional lookup the engine consults.
type Tables struct {
	Currency        string                      `yaml:"currency"`
	Locale          string                      `yaml:"locale"`
	TaxRates        map[string]Money            `yaml:"taxRates"`
	DiscountTiers   []Tier                      `yaml:"discountTiers"`
	ShippingRates   map[string]map[string]Money `yaml:"shippingRates"`
	ShippingMethods []MethodInfo                `yaml:"shippingMethods"`
	PaymentMethods  PaymentTable                `yaml:"paymentMethods"`
	PromoCodes      map[string]Promo            `yaml:"promoCodes"`
}

//go:embed data/tables.yaml
var defaultTables []byte

// DefaultTables returns the embedded reference tables.
func DefaultTables() (Tables, error) {
	return LoadTables(bytes.NewReader(defaultTables))
}

// LoadTablesFile reads tables from a YAML file.
func LoadTablesFile(path string) (Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tables{}, fmt.Errorf("pricing: open tables: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadTables(f)
}

// LoadTables decodes and validates YAML tables.
func LoadTables(r io.Reader) (Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Tables{}, fmt.Errorf("pricing: decode tables: %w", err)
	}
	if err := t.normalize(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// normalize upper-cases region and promo keys, orders tiers by descending
// threshold and checks the fallbacks the engine relies on.
func (t *Tables) normalize() error {
	if t.Currency == "" {
		t.Currency = "USD"
	}
	if t.Locale == "" {
		t.Locale = "en-US"
	}

	t.TaxRates = upperKeys(t.TaxRates)
	if _, ok := t.TaxRates[DefaultRegion]; !ok {
		return errors.New("pricing: tax rates need a DEFAULT entry")
	}
	for region, rate := range t.TaxRates {
		if rate.IsNegative() {
			return fmt.Errorf("pricing: tax rate for %s is negative", region)
		}
	}

	t.ShippingRates = upperKeys(t.ShippingRates)
	if _, ok := t.ShippingRates[InternationalRegion]; !ok {
		return errors.New("pricing: shipping rates need an INTERNATIONAL bucket")
	}
	for region, bucket := range t.ShippingRates {
		bucket = lowerKeys(bucket)
		t.ShippingRates[region] = bucket
		if _, ok := bucket[StandardMethod]; !ok {
			return fmt.Errorf("pricing: shipping bucket %s has no standard rate", region)
		}
	}

	tiers := append([]Tier(nil), t.DiscountTiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold.GreaterThan(tiers[j].Threshold) })
	for i, tier := range tiers {
		if tier.Rate.IsNegative() || tier.Rate.GreaterThan(decimalOne) {
			return fmt.Errorf("pricing: discount rate %s out of range", tier.Rate)
		}
		if i > 0 && tier.Threshold.Equal(tiers[i-1].Threshold) {
			return fmt.Errorf("pricing: duplicate discount threshold %s", tier.Threshold)
		}
	}
	t.DiscountTiers = tiers

	t.PromoCodes = upperKeys(t.PromoCodes)
	for code, promo := range t.PromoCodes {
		switch promo.Type {
		case PromoPercentage, PromoFixed, PromoFreeShipping:
		default:
			return fmt.Errorf("pricing: promo %s has unknown type %q", code, promo.Type)
		}
	}

	t.PaymentMethods.Regional = upperKeys(t.PaymentMethods.Regional)
	return nil
}

var decimalOne = decimal.NewFromInt(1)

func upperKeys[V any](in map[string]V) map[string]V {
	return rekey(in, strings.ToUpper)
}

func lowerKeys[V any](in map[string]V) map[string]V {
	return rekey(in, strings.ToLower)
}

func rekey[V any](in map[string]V, fn func(string) string) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[fn(strings.TrimSpace(k))] = v
	}
	return out
}

package configurator

import (
	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/pricing"
)

// Configuration is an in-progress selection of a product and its options.
// ID is assigned when a product is selected; empty means none yet.
type Configuration struct {
	ID         string           `json:"id"`
	ProductID  string           `json:"productId"`
	Color      *catalog.Option  `json:"color"`
	Material   *catalog.Option  `json:"material"`
	Features   []catalog.Option `json:"features"`
	TotalPrice pricing.Money    `json:"totalPrice"`
}

// Empty returns the initial configuration.
func Empty() Configuration {
	return Configuration{Features: []catalog.Option{}, TotalPrice: pricing.Zero}
}

// Selection returns the priced part of the configuration.
func (c Configuration) Selection() pricing.Selection {
	return pricing.Selection{Color: c.Color, Material: c.Material, Features: c.Features}
}

// HasFeature reports whether a feature with id is selected.
func (c Configuration) HasFeature(id string) bool {
	return c.featureIndex(id) >= 0
}

func (c Configuration) featureIndex(id string) int {
	for i, f := range c.Features {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of c.
func (c Configuration) Clone() Configuration {
	cp := c
	if c.Color != nil {
		color := *c.Color
		cp.Color = &color
	}
	if c.Material != nil {
		material := *c.Material
		cp.Material = &material
	}
	cp.Features = make([]catalog.Option, len(c.Features))
	copy(cp.Features, c.Features)
	return cp
}

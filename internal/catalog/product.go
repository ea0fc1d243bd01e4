package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Id constraints. Product and option ids travel verbatim in share links,
// where feature ids are joined with IDSeparator.
const (
	IDSeparator      = ","
	IDForbiddenChars = `<>{}()/\`
	MaxIDLength      = 64
	MaxFeatures      = 48
)

// ValidateID reports whether id can be used as a product or option id.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("id %q is empty", id)
	case len(id) > MaxIDLength:
		return fmt.Errorf("id %q is longer than %d bytes", id, MaxIDLength)
	case strings.ContainsAny(id, IDForbiddenChars+IDSeparator):
		return fmt.Errorf("id %q contains one of %q", id, IDForbiddenChars+IDSeparator)
	}
	return nil
}

// Group names an option group on a product.
type Group string

// Option groups exposed by every product.
const (
	Colors    Group = "colors"
	Materials Group = "materials"
	Features  Group = "features"
)

// ParseGroup maps a raw group name to a Group. Singular forms are accepted.
func ParseGroup(raw string) (Group, bool) {
	switch raw {
	case "colors", "color":
		return Colors, true
	case "materials", "material":
		return Materials, true
	case "features", "feature":
		return Features, true
	}
	return "", false
}

// Option is a selectable choice within a product option group.
type Option struct {
	ID    string          `json:"id" yaml:"id"`
	Name  string          `json:"name" yaml:"name"`
	Price decimal.Decimal `json:"price" yaml:"price"`
	Image string          `json:"image,omitempty" yaml:"image,omitempty"`
}

// Options groups a product's selectable options.
type Options struct {
	Colors    []Option `json:"colors" yaml:"colors"`
	Materials []Option `json:"materials" yaml:"materials"`
	Features  []Option `json:"features" yaml:"features"`
}

// Product is a configurable base product. Values handed out by a Repository
// are copies and may be modified freely by the caller.
type Product struct {
	ID                 string           `json:"id" yaml:"id"`
	Name               string           `json:"name" yaml:"name"`
	Description        string           `json:"description" yaml:"description"`
	BasePrice          decimal.Decimal  `json:"basePrice" yaml:"basePrice"`
	Category           string           `json:"category" yaml:"category"`
	Image              string           `json:"image,omitempty" yaml:"image,omitempty"`
	ShippingAdjustment *decimal.Decimal `json:"shippingAdjustment,omitempty" yaml:"shippingAdjustment,omitempty"`
	Options            Options          `json:"options" yaml:"options"`
}

// Group returns the options of group g, or nil when the group is unknown.
func (p *Product) Group(g Group) []Option {
	if p == nil {
		return nil
	}
	switch g {
	case Colors:
		return p.Options.Colors
	case Materials:
		return p.Options.Materials
	case Features:
		return p.Options.Features
	}
	return nil
}

// FindOption looks up an option by id within group g.
func (p *Product) FindOption(g Group, id string) (Option, bool) {
	for _, opt := range p.Group(g) {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

func (p *Product) validate() error {
	if err := ValidateID(p.ID); err != nil {
		return fmt.Errorf("product %q: %w", p.Name, err)
	}
	if n := len(p.Options.Features); n > MaxFeatures {
		return fmt.Errorf("product %q: %d features, at most %d", p.ID, n, MaxFeatures)
	}
	for _, g := range []Group{Colors, Materials, Features} {
		seen := make(map[string]struct{}, len(p.Group(g)))
		for _, opt := range p.Group(g) {
			if err := ValidateID(opt.ID); err != nil {
				return fmt.Errorf("product %q %s: %w", p.ID, g, err)
			}
			if _, dup := seen[opt.ID]; dup {
				return fmt.Errorf("product %q %s: duplicate option id %q", p.ID, g, opt.ID)
			}
			seen[opt.ID] = struct{}{}
		}
	}
	return nil
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	cp := p
	cp.Options = Options{
		Colors:    cloneOptions(p.Options.Colors),
		Materials: cloneOptions(p.Options.Materials),
		Features:  cloneOptions(p.Options.Features),
	}
	if p.ShippingAdjustment != nil {
		adj := *p.ShippingAdjustment
		cp.ShippingAdjustment = &adj
	}
	return cp
}

func cloneOptions(in []Option) []Option {
	if in == nil {
		return nil
	}
	out := make([]Option, len(in))
	copy(out, in)
	return out
}

package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed data/products.yaml
var defaultDataset []byte

type dataset struct {
	Products []Product `json:"products" yaml:"products"`
}

// LoadYAML decodes a product dataset of the form {products: [...]}.
func LoadYAML(r io.Reader) ([]Product, error) {
	var ds dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml dataset: %w", err)
	}
	return ds.Products, nil
}

// LoadJSON decodes a product dataset of the form {"products": [...]}.
func LoadJSON(r io.Reader) ([]Product, error) {
	var ds dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("catalog: decode json dataset: %w", err)
	}
	return ds.Products, nil
}

// DefaultProducts returns the embedded sample dataset.
func DefaultProducts() ([]Product, error) {
	return LoadYAML(bytes.NewReader(defaultDataset))
}

// NewDefault builds a Static repository over the embedded dataset.
func NewDefault(opts ...StaticOption) (*Static, error) {
	products, err := DefaultProducts()
	if err != nil {
		return nil, err
	}
	return NewStatic(products, opts...)
}

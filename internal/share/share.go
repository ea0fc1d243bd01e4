// Package share encodes configurations as share link query parameters and
// resolves them back against the catalog.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/configurator"
	"github.com/noah-isme/backend-configurator/internal/pricing"
)

// Query parameter names.
const (
	KeyID           = "id"
	KeyProduct      = "product"
	KeyColor        = "color"
	KeyMaterial     = "material"
	KeyFeatures     = "features"
	KeySignature    = "sig"
	featureSep      = catalog.IDSeparator
	maxValueLength  = 512
	suspiciousChars = catalog.IDForbiddenChars
)

// maxFeaturesLength fits MaxFeatures ids of MaxIDLength joined by featureSep.
const maxFeaturesLength = catalog.MaxFeatures * (catalog.MaxIDLength + len(featureSep))

var requiredKeys = []string{KeyID, KeyProduct, KeyColor, KeyMaterial, KeyFeatures}

var (
	// ErrMalformedToken reports parameters that cannot be parsed as a share
	// token at all.
	ErrMalformedToken = errors.New("share: malformed token")
	// ErrReferenceNotFound reports a well formed token naming a product or
	// option that the catalog no longer has.
	ErrReferenceNotFound = errors.New("share: reference not found")
)

// Encode returns the share parameters for cfg. Every key is present; absent
// selections encode as empty strings and features keep selection order.
func Encode(cfg configurator.Configuration) url.Values {
	ids := make([]string, 0, len(cfg.Features))
	for _, f := range cfg.Features {
		ids = append(ids, f.ID)
	}
	values := url.Values{}
	values.Set(KeyID, cfg.ID)
	values.Set(KeyProduct, cfg.ProductID)
	values.Set(KeyColor, optionID(cfg.Color))
	values.Set(KeyMaterial, optionID(cfg.Material))
	values.Set(KeyFeatures, strings.Join(ids, featureSep))
	return values
}

// EncodeQuery is Encode rendered as a query string with sorted keys.
func EncodeQuery(cfg configurator.Configuration) string {
	return Encode(cfg).Encode()
}

// URL builds the share link for values under base.
func URL(base string, values url.Values) string {
	return strings.TrimRight(base, "/") + "/configurator?" + values.Encode()
}

func optionID(opt *catalog.Option) string {
	if opt == nil {
		return ""
	}
	return opt.ID
}

type token struct {
	id       string
	product  string
	color    string
	material string
	features []string
}

func parse(values url.Values) (token, error) {
	for _, key := range requiredKeys {
		vs, ok := values[key]
		if !ok || len(vs) != 1 {
			return token{}, fmt.Errorf("parameter %q: %w", key, ErrMalformedToken)
		}
		if err := checkValue(key, vs[0]); err != nil {
			return token{}, err
		}
	}
	tok := token{
		id:       values.Get(KeyID),
		product:  values.Get(KeyProduct),
		color:    values.Get(KeyColor),
		material: values.Get(KeyMaterial),
	}
	if tok.id == "" {
		return token{}, fmt.Errorf("empty id: %w", ErrMalformedToken)
	}
	if tok.product == "" {
		return token{}, fmt.Errorf("empty product: %w", ErrMalformedToken)
	}
	if raw := values.Get(KeyFeatures); raw != "" {
		seen := map[string]struct{}{}
		for _, id := range strings.Split(raw, featureSep) {
			if id == "" {
				return token{}, fmt.Errorf("empty feature id: %w", ErrMalformedToken)
			}
			if _, dup := seen[id]; dup {
				return token{}, fmt.Errorf("feature %q repeated: %w", id, ErrMalformedToken)
			}
			seen[id] = struct{}{}
			tok.features = append(tok.features, id)
		}
	}
	return tok, nil
}

func checkValue(key, v string) error {
	limit := maxValueLength
	if key == KeyFeatures {
		limit = maxFeaturesLength
	}
	if len(v) > limit {
		return fmt.Errorf("parameter %q too long: %w", key, ErrMalformedToken)
	}
	if strings.ContainsAny(v, suspiciousChars) {
		return fmt.Errorf("parameter %q has forbidden characters: %w", key, ErrMalformedToken)
	}
	return nil
}

// Decode resolves share parameters against repo. The total price is
// recomputed from the resolved options.
func Decode(ctx context.Context, values url.Values, repo catalog.Repository) (configurator.Configuration, *catalog.Product, error) {
	tok, err := parse(values)
	if err != nil {
		return configurator.Configuration{}, nil, err
	}
	product, err := repo.GetProduct(ctx, tok.product)
	if errors.Is(err, catalog.ErrNotFound) {
		return configurator.Configuration{}, nil, fmt.Errorf("product %q: %w", tok.product, ErrReferenceNotFound)
	}
	if err != nil {
		return configurator.Configuration{}, nil, fmt.Errorf("load product %q: %w", tok.product, err)
	}

	cfg := configurator.Empty()
	cfg.ID = tok.id
	cfg.ProductID = product.ID
	if cfg.Color, err = lookup(&product, catalog.Colors, tok.color); err != nil {
		return configurator.Configuration{}, nil, err
	}
	if cfg.Material, err = lookup(&product, catalog.Materials, tok.material); err != nil {
		return configurator.Configuration{}, nil, err
	}
	for _, id := range tok.features {
		opt, err := lookup(&product, catalog.Features, id)
		if err != nil {
			return configurator.Configuration{}, nil, err
		}
		cfg.Features = append(cfg.Features, *opt)
	}
	cfg.TotalPrice = pricing.BasePrice(&product, cfg.Selection())
	return cfg, &product, nil
}

func lookup(p *catalog.Product, group catalog.Group, id string) (*catalog.Option, error) {
	if id == "" {
		return nil, nil
	}
	opt, ok := p.FindOption(group, id)
	if !ok {
		return nil, fmt.Errorf("%s %q of %q: %w", group, id, p.ID, ErrReferenceNotFound)
	}
	return &opt, nil
}

// Codec decodes share parameters against a catalog and optionally checks
// their signature first.
type Codec struct {
	Catalog catalog.Repository
	Signer  *Signer
}

// Decode implements configurator.Decoder.
func (c Codec) Decode(ctx context.Context, values url.Values) (configurator.Configuration, *catalog.Product, error) {
	if c.Signer != nil {
		verified, err := c.Signer.Verify(values)
		if err != nil {
			return configurator.Configuration{}, nil, err
		}
		values = verified
	}
	return Decode(ctx, values, c.Catalog)
}

// Encode returns the share parameters for cfg, signed when a signer is set.
func (c Codec) Encode(cfg configurator.Configuration) url.Values {
	values := Encode(cfg)
	if c.Signer != nil {
		values = c.Signer.Sign(values)
	}
	return values
}

package configurator

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/pricing"
)

var (
	// ErrInvalidSelection reports an option that the selected product does not
	// offer, or an option chosen before any product.
	ErrInvalidSelection = errors.New("configurator: invalid selection")
	// ErrNoProduct reports an operation that needs a selected product.
	ErrNoProduct = fmt.Errorf("no product selected: %w", ErrInvalidSelection)
)

// Decoder turns share link parameters back into a configuration and the
// product it references.
type Decoder interface {
	Decode(ctx context.Context, values url.Values) (Configuration, *catalog.Product, error)
}

// Service drives a Machine with ids resolved against the catalog.
type Service struct {
	catalog catalog.Repository
	machine *Machine
	decoder Decoder
}

// NewService wraps machine. A nil machine starts a fresh one.
func NewService(repo catalog.Repository, machine *Machine, decoder Decoder) *Service {
	if machine == nil {
		machine = NewMachine()
	}
	return &Service{catalog: repo, machine: machine, decoder: decoder}
}

// Machine returns the underlying state machine.
func (s *Service) Machine() *Machine { return s.machine }

// SelectProduct looks up id and starts a configuration for it. Catalog errors
// are returned wrapped, so catalog.ErrNotFound stays detectable.
func (s *Service) SelectProduct(ctx context.Context, id string) error {
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("select product %q: %w", id, err)
	}
	s.machine.SelectProduct(product)
	return nil
}

// SelectColor selects color id of the current product.
func (s *Service) SelectColor(ctx context.Context, id string) error {
	opt, err := s.resolve(ctx, catalog.Colors, id)
	if err != nil {
		return err
	}
	s.machine.SelectColor(opt)
	return nil
}

// SelectMaterial selects material id of the current product.
func (s *Service) SelectMaterial(ctx context.Context, id string) error {
	opt, err := s.resolve(ctx, catalog.Materials, id)
	if err != nil {
		return err
	}
	s.machine.SelectMaterial(opt)
	return nil
}

// ToggleFeature toggles feature id. A selected feature is removed without a
// catalog lookup.
func (s *Service) ToggleFeature(ctx context.Context, id string) error {
	cfg := s.machine.config
	if i := cfg.featureIndex(id); i >= 0 {
		s.machine.ToggleFeature(cfg.Features[i])
		return nil
	}
	opt, err := s.resolve(ctx, catalog.Features, id)
	if err != nil {
		return err
	}
	s.machine.ToggleFeature(opt)
	return nil
}

func (s *Service) resolve(ctx context.Context, group catalog.Group, id string) (catalog.Option, error) {
	productID := s.machine.config.ProductID
	if productID == "" {
		return catalog.Option{}, ErrNoProduct
	}
	opts, err := s.catalog.ListOptionGroup(ctx, productID, group)
	if err != nil {
		return catalog.Option{}, fmt.Errorf("list %s of %q: %w", group, productID, err)
	}
	for _, opt := range opts {
		if opt.ID == id {
			return opt, nil
		}
	}
	return catalog.Option{}, fmt.Errorf("%s %q not offered by %q: %w", group, id, productID, ErrInvalidSelection)
}

// Restore decodes share link values and loads the result. The cursor is left
// where it was. Decoder errors are returned unchanged.
func (s *Service) Restore(ctx context.Context, values url.Values) error {
	if s.decoder == nil {
		return errors.New("configurator: no decoder configured")
	}
	cfg, product, err := s.decoder.Decode(ctx, values)
	if err != nil {
		return err
	}
	s.machine.Load(cfg, product)
	return nil
}

// Quote prices the current configuration.
func (s *Service) Quote(engine *pricing.Engine, opts pricing.Options) (pricing.Breakdown, error) {
	product := s.machine.product
	if product == nil {
		return pricing.Breakdown{}, ErrNoProduct
	}
	return engine.Total(product, s.machine.config.Selection(), opts), nil
}

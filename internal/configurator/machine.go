package configurator

import (
	"github.com/google/uuid"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/pricing"
)

// TotalSteps is the number of wizard steps.
const TotalSteps = 4

// Wizard steps in order.
const (
	StepProduct  = 1
	StepColor    = 2
	StepMaterial = 3
	StepFeatures = 4
)

// Cursor is the wizard position. Current stays within [1, Total].
type Cursor struct {
	Current int `json:"currentStep"`
	Total   int `json:"totalSteps"`
}

// Machine is the configuration state machine. It is owned by a single caller
// and is not safe for concurrent use.
type Machine struct {
	cursor  Cursor
	config  Configuration
	product *catalog.Product
	newID   func() string
}

// MachineOption customises a Machine.
type MachineOption func(*Machine)

// WithIDGenerator overrides how configuration ids are generated.
func WithIDGenerator(fn func() string) MachineOption {
	return func(m *Machine) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewMachine returns a machine at step 1 with an empty configuration.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{
		cursor: Cursor{Current: StepProduct, Total: TotalSteps},
		config: Empty(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// commit applies mutate to a copy of the configuration, recomputes the total
// price and only then publishes the result. Every selection transition goes
// through here.
func (m *Machine) commit(product *catalog.Product, mutate func(*Configuration)) {
	next := m.config.Clone()
	mutate(&next)
	next.TotalPrice = pricing.BasePrice(product, next.Selection())
	m.config = next
	m.product = product
}

// SelectProduct starts a new configuration for p. Previous option selections
// are cleared and the cursor does not move.
func (m *Machine) SelectProduct(p catalog.Product) {
	product := p.Clone()
	m.commit(&product, func(c *Configuration) {
		c.ID = m.newID()
		c.ProductID = product.ID
		c.Color = nil
		c.Material = nil
		c.Features = []catalog.Option{}
	})
}

// SelectColor replaces the selected color.
func (m *Machine) SelectColor(opt catalog.Option) {
	m.commit(m.product, func(c *Configuration) { c.Color = &opt })
}

// SelectMaterial replaces the selected material.
func (m *Machine) SelectMaterial(opt catalog.Option) {
	m.commit(m.product, func(c *Configuration) { c.Material = &opt })
}

// ToggleFeature removes the feature when a feature with the same id is
// selected, and appends it otherwise.
func (m *Machine) ToggleFeature(opt catalog.Option) {
	m.commit(m.product, func(c *Configuration) {
		if i := c.featureIndex(opt.ID); i >= 0 {
			c.Features = append(c.Features[:i], c.Features[i+1:]...)
			return
		}
		c.Features = append(c.Features, opt)
	})
}

// Advance moves to the next step. It is a no-op on the last step.
func (m *Machine) Advance() {
	if m.cursor.Current < m.cursor.Total {
		m.cursor.Current++
	}
}

// Retreat moves to the previous step. It is a no-op on the first step.
func (m *Machine) Retreat() {
	if m.cursor.Current > 1 {
		m.cursor.Current--
	}
}

// Reset returns to step 1 with an empty configuration.
func (m *Machine) Reset() {
	m.cursor.Current = StepProduct
	m.config = Empty()
	m.product = nil
}

// Load replaces the configuration wholesale. Option membership is not
// checked here and the stored total is kept as given.
func (m *Machine) Load(cfg Configuration, product *catalog.Product) {
	m.config = cfg.Clone()
	if product == nil {
		m.product = nil
		return
	}
	p := product.Clone()
	m.product = &p
}

// Step returns the current step.
func (m *Machine) Step() int { return m.cursor.Current }

// Cursor returns the wizard position.
func (m *Machine) Cursor() Cursor { return m.cursor }

// Progress returns the step position as a percentage.
func (m *Machine) Progress() float64 {
	return float64(m.cursor.Current) / float64(m.cursor.Total) * 100
}

// IsFeatureSelected reports whether feature id is part of the configuration.
func (m *Machine) IsFeatureSelected(id string) bool {
	return m.config.HasFeature(id)
}

// CanAdvance reports whether the current step has what it needs to move on.
func (m *Machine) CanAdvance() bool {
	switch m.cursor.Current {
	case StepProduct:
		return m.config.ProductID != ""
	case StepColor:
		return m.config.Color != nil
	case StepMaterial:
		return m.config.Material != nil
	default:
		return true
	}
}

// Complete reports whether the wizard is on its last step with a valid
// configuration.
func (m *Machine) Complete() bool {
	return m.cursor.Current == m.cursor.Total && Validate(m.config).Valid
}

// Snapshot returns a copy of the configuration.
func (m *Machine) Snapshot() Configuration { return m.config.Clone() }

// Product returns a copy of the selected product, or nil.
func (m *Machine) Product() *catalog.Product {
	if m.product == nil {
		return nil
	}
	p := m.product.Clone()
	return &p
}

// State is the serialisable form of a Machine.
type State struct {
	Step          int              `json:"step"`
	Configuration Configuration    `json:"configuration"`
	Product       *catalog.Product `json:"product,omitempty"`
}

// State captures the machine for persistence.
func (m *Machine) State() State {
	return State{Step: m.cursor.Current, Configuration: m.Snapshot(), Product: m.Product()}
}

// Restore rebuilds a machine from s. Out of range steps are clamped.
func Restore(s State, opts ...MachineOption) *Machine {
	m := NewMachine(opts...)
	m.cursor.Current = min(max(s.Step, 1), m.cursor.Total)
	cfg := s.Configuration
	if cfg.Features == nil {
		cfg.Features = []catalog.Option{}
	}
	m.Load(cfg, s.Product)
	return m
}

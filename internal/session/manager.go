package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/configurator"
	"github.com/noah-isme/backend-configurator/internal/obs"
)

// Locker serialises work per session id.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(context.Context) error) error
}

// View is the client facing state of a session.
type View struct {
	SessionID     string                     `json:"sessionId"`
	Step          int                        `json:"step"`
	TotalSteps    int                        `json:"totalSteps"`
	Progress      float64                    `json:"progress"`
	CanAdvance    bool                       `json:"canAdvance"`
	Complete      bool                       `json:"complete"`
	Configuration configurator.Configuration `json:"configuration"`
	Validation    configurator.Validation    `json:"validation"`
}

func newView(id string, m *configurator.Machine) View {
	cfg := m.Snapshot()
	return View{
		SessionID:     id,
		Step:          m.Step(),
		TotalSteps:    m.Cursor().Total,
		Progress:      m.Progress(),
		CanAdvance:    m.CanAdvance(),
		Complete:      m.Complete(),
		Configuration: cfg,
		Validation:    configurator.Validate(cfg),
	}
}

// Manager owns the machines of all sessions. Transitions on one session run
// under that session's lock and are persisted only when they succeed.
type Manager struct {
	store   *Store
	locker  Locker
	catalog catalog.Repository
	decoder configurator.Decoder
	newID   func() string
	logger  zerolog.Logger
	metrics *obs.DomainMetrics
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Store   *Store
	Locker  Locker
	Catalog catalog.Repository
	Decoder configurator.Decoder
	NewID   func() string
	Logger  zerolog.Logger
	Metrics *obs.DomainMetrics
}

// NewManager constructs a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Manager{
		store:   cfg.Store,
		locker:  cfg.Locker,
		catalog: cfg.Catalog,
		decoder: cfg.Decoder,
		newID:   newID,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Create starts a session with an empty configuration.
func (m *Manager) Create(ctx context.Context) (View, error) {
	id := m.newID()
	machine := configurator.NewMachine()
	if err := m.store.Put(ctx, id, machine.State()); err != nil {
		return View{}, err
	}
	m.logger.Debug().Str("session_id", id).Msg("session_created")
	return newView(id, machine), nil
}

// Get returns the current view of session id.
func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	svc, err := m.Service(ctx, id)
	if err != nil {
		return View{}, err
	}
	return newView(id, svc.Machine()), nil
}

// Service loads session id for reading. Changes made through the returned
// service are not persisted.
func (m *Manager) Service(ctx context.Context, id string) (*configurator.Service, error) {
	st, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return configurator.NewService(m.catalog, configurator.Restore(st), m.decoder), nil
}

// Do applies fn to session id under its lock. The new state is stored only
// when fn succeeds, so a failed intent leaves the session unchanged.
func (m *Manager) Do(ctx context.Context, id, intent string, fn func(context.Context, *configurator.Service) error) (View, error) {
	var view View
	err := m.locker.WithLock(ctx, id, func(ctx context.Context) error {
		svc, err := m.Service(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, svc); err != nil {
			return fmt.Errorf("%s: %w", intent, err)
		}
		machine := svc.Machine()
		if err := m.store.Put(ctx, id, machine.State()); err != nil {
			return err
		}
		view = newView(id, machine)
		return nil
	})
	m.metrics.ObserveTransition(intent, err)
	evt := m.logger.Debug().Str("session_id", id).Str("intent", intent)
	if err != nil {
		evt = evt.Err(err)
	} else {
		evt = evt.Int("step", view.Step).Str("total_price", view.Configuration.TotalPrice.String())
	}
	evt.Msg("session_transition")
	return view, err
}

package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/common"
	"github.com/noah-isme/backend-configurator/internal/configurator"
	"github.com/noah-isme/backend-configurator/internal/lock"
	"github.com/noah-isme/backend-configurator/internal/obs"
	"github.com/noah-isme/backend-configurator/internal/pricing"
	"github.com/noah-isme/backend-configurator/internal/saved"
	"github.com/noah-isme/backend-configurator/internal/share"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Handler exposes configurator sessions over HTTP.
type Handler struct {
	manager   *Manager
	engine    *pricing.Engine
	saved     saved.Store
	storeName string
	codec     share.Codec
	baseURL   string
	validate  *validator.Validate
	logger    zerolog.Logger
	metrics   *obs.DomainMetrics
	limit     Middleware
	idem      Middleware
}

// HandlerConfig configures the Handler dependencies. PromoLimit guards the
// quote and promo routes; Idempotency guards saves. Both are optional.
type HandlerConfig struct {
	Manager      *Manager
	Engine       *pricing.Engine
	Saved        saved.Store
	StoreName    string
	Codec        share.Codec
	ShareBaseURL string
	Validator    *validator.Validate
	Logger       zerolog.Logger
	Metrics      *obs.DomainMetrics
	PromoLimit   Middleware
	Idempotency  Middleware
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Handler{
		manager:   cfg.Manager,
		engine:    cfg.Engine,
		saved:     cfg.Saved,
		storeName: cfg.StoreName,
		codec:     cfg.Codec,
		baseURL:   cfg.ShareBaseURL,
		validate:  v,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		limit:     orPassthrough(cfg.PromoLimit),
		idem:      orPassthrough(cfg.Idempotency),
	}
}

func orPassthrough(mw Middleware) Middleware {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

// Routes mounts the session and saved configuration endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/product", h.SelectProduct)
			r.Put("/color", h.SelectColor)
			r.Put("/material", h.SelectMaterial)
			r.Post("/features/{featureID}/toggle", h.ToggleFeature)
			r.Post("/next", h.Next)
			r.Post("/prev", h.Prev)
			r.Post("/reset", h.Reset)
			r.With(h.limit).Post("/quote", h.Quote)
			r.With(h.limit).Post("/promo", h.ApplyPromo)
			r.Get("/share", h.Share)
			r.Post("/restore", h.Restore)
			r.With(h.idem).Post("/save", h.Save)
		})
	})
	r.Get("/saved", h.ListSaved)
}

type selectProductRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
}

type optionRequest struct {
	OptionID string `json:"optionId" validate:"required,max=64"`
}

type quoteRequest struct {
	Region          string `json:"region,omitempty" validate:"omitempty,alpha,max=32"`
	ShippingMethod  string `json:"shippingMethod,omitempty" validate:"omitempty,max=32"`
	PromoCode       string `json:"promoCode,omitempty" validate:"omitempty,alphanum,max=32"`
	DisableDiscount bool   `json:"disableDiscount,omitempty"`
	DisableTax      bool   `json:"disableTax,omitempty"`
	DisableShipping bool   `json:"disableShipping,omitempty"`
}

type promoRequest struct {
	Code string `json:"code" validate:"required,alphanum,max=32"`
}

type restoreRequest struct {
	Query string `json:"query" validate:"required,max=8192"`
}

type saveRequest struct {
	UserID string `json:"userId,omitempty" validate:"omitempty,max=128"`
}

// ShareLink is a configuration encoded as share parameters.
type ShareLink struct {
	Query  string     `json:"query"`
	URL    string     `json:"url,omitempty"`
	Params url.Values `json:"params"`
}

// Create handles POST /api/v1/sessions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, view)
}

// Get handles GET /api/v1/sessions/{sessionID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.manager.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

// SelectProduct handles PUT /api/v1/sessions/{sessionID}/product.
func (h *Handler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	var req selectProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.transition(w, r, "select_product", func(ctx context.Context, svc *configurator.Service) error {
		return svc.SelectProduct(ctx, req.ProductID)
	})
}

// SelectColor handles PUT /api/v1/sessions/{sessionID}/color.
func (h *Handler) SelectColor(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.transition(w, r, "select_color", func(ctx context.Context, svc *configurator.Service) error {
		return svc.SelectColor(ctx, req.OptionID)
	})
}

// SelectMaterial handles PUT /api/v1/sessions/{sessionID}/material.
func (h *Handler) SelectMaterial(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.transition(w, r, "select_material", func(ctx context.Context, svc *configurator.Service) error {
		return svc.SelectMaterial(ctx, req.OptionID)
	})
}

// ToggleFeature handles POST /api/v1/sessions/{sessionID}/features/{featureID}/toggle.
func (h *Handler) ToggleFeature(w http.ResponseWriter, r *http.Request) {
	featureID := chi.URLParam(r, "featureID")
	h.transition(w, r, "toggle_feature", func(ctx context.Context, svc *configurator.Service) error {
		return svc.ToggleFeature(ctx, featureID)
	})
}

// Next handles POST /api/v1/sessions/{sessionID}/next.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "advance", func(_ context.Context, svc *configurator.Service) error {
		svc.Machine().Advance()
		return nil
	})
}

// Prev handles POST /api/v1/sessions/{sessionID}/prev.
func (h *Handler) Prev(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "retreat", func(_ context.Context, svc *configurator.Service) error {
		svc.Machine().Retreat()
		return nil
	})
}

// Reset handles POST /api/v1/sessions/{sessionID}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reset", func(_ context.Context, svc *configurator.Service) error {
		svc.Machine().Reset()
		return nil
	})
}

// Restore handles POST /api/v1/sessions/{sessionID}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !h.decode(w, r, &req) {
		return
	}
	values, err := url.ParseQuery(strings.TrimPrefix(req.Query, "?"))
	if err != nil {
		h.metrics.ObserveRestore("malformed")
		writeError(w, share.ErrMalformedToken)
		return
	}
	view, err := h.manager.Do(r.Context(), chi.URLParam(r, "sessionID"), "restore", func(ctx context.Context, svc *configurator.Service) error {
		return svc.Restore(ctx, values)
	})
	h.metrics.ObserveRestore(restoreOutcome(err))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func restoreOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, share.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, share.ErrReferenceNotFound):
		return "stale"
	default:
		return "error"
	}
}

// Quote handles POST /api/v1/sessions/{sessionID}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := h.manager.Service(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	breakdown, err := svc.Quote(h.engine, pricing.Options{
		Region:          req.Region,
		ShippingMethod:  req.ShippingMethod,
		DisableDiscount: req.DisableDiscount,
		DisableTax:      req.DisableTax,
		DisableShipping: req.DisableShipping,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.ObserveQuote(h.engine.Region(req.Region))
	quote := h.engine.QuoteWithPromo(breakdown, req.PromoCode)
	if quote.Promo != nil {
		h.metrics.ObservePromo(quote.Promo.Valid)
	}
	common.Data(w, http.StatusOK, quote)
}

// ApplyPromo handles POST /api/v1/sessions/{sessionID}/promo. The code is
// applied to the subtotal after the volume discount, the same base a quote
// uses.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := h.manager.Service(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	breakdown, err := svc.Quote(h.engine, pricing.Options{})
	if err != nil {
		writeError(w, err)
		return
	}
	res := h.engine.PromoOn(breakdown, req.Code)
	h.metrics.ObservePromo(res.Valid)
	common.Data(w, http.StatusOK, res)
}

// Share handles GET /api/v1/sessions/{sessionID}/share.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	svc, err := h.manager.Service(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := svc.Machine().Snapshot()
	if cfg.ProductID == "" {
		writeError(w, configurator.ErrNoProduct)
		return
	}
	values := h.codec.Encode(cfg)
	link := ShareLink{Query: values.Encode(), Params: values}
	if h.baseURL != "" {
		link.URL = share.URL(h.baseURL, values)
	}
	common.Data(w, http.StatusOK, link)
}

// Save handles POST /api/v1/sessions/{sessionID}/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if h.saved == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodePersistenceFailure, "saved configurations are not configured", nil)
		return
	}
	var req saveRequest
	if !h.decode(w, r, &req) {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	svc, err := h.manager.Service(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg := svc.Machine().Snapshot()
	if cfg.ProductID == "" {
		writeError(w, configurator.ErrNoProduct)
		return
	}
	rec, err := h.saved.Save(r.Context(), cfg, req.UserID)
	h.metrics.ObserveSave(h.storeName, err)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("configuration_save_failed")
		writeError(w, err)
		return
	}
	h.logger.Info().
		Str("session_id", sessionID).
		Str("record_id", rec.ID).
		Str("configuration_id", cfg.ID).
		Str("product_id", cfg.ProductID).
		Bool("anonymous", req.UserID == "").
		Msg("configuration_saved")
	common.Data(w, http.StatusCreated, rec)
}

// ListSaved handles GET /api/v1/saved.
func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	if h.saved == nil {
		common.JSONError(w, http.StatusServiceUnavailable, common.CodePersistenceFailure, "saved configurations are not configured", nil)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	records, err := h.saved.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	items, meta := common.Paginate(records, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, intent string, fn func(context.Context, *configurator.Service) error) {
	view, err := h.manager.Do(r.Context(), chi.URLParam(r, "sessionID"), intent, fn)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	if err := common.ValidateStruct(h.validate, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "session not found", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
	case errors.Is(err, configurator.ErrInvalidSelection):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeInvalidSelection, err.Error(), nil)
	case errors.Is(err, share.ErrMalformedToken):
		common.JSONError(w, http.StatusBadRequest, common.CodeMalformedToken, "share link is malformed", nil)
	case errors.Is(err, share.ErrReferenceNotFound):
		common.JSONError(w, http.StatusGone, common.CodeReferenceNotFound, err.Error(), nil)
	case errors.Is(err, saved.ErrPersistence):
		common.JSONError(w, http.StatusServiceUnavailable, common.CodePersistenceFailure, "could not persist configuration", nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.JSONError(w, http.StatusConflict, "SESSION_BUSY", "session is busy, retry", nil)
	default:
		common.WriteError(w, err)
	}
}

package pricing

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-configurator/internal/catalog"
	"github.com/noah-isme/backend-configurator/internal/common"
	"github.com/noah-isme/backend-configurator/internal/obs"
)

// Handler exposes pricing endpoints.
type Handler struct {
	engine   *Engine
	catalog  catalog.Repository
	validate *validator.Validate
	metrics  *obs.DomainMetrics
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Engine    *Engine
	Catalog   catalog.Repository
	Validator *validator.Validate
	Metrics   *obs.DomainMetrics
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Handler{engine: cfg.Engine, catalog: cfg.Catalog, validate: v, metrics: cfg.Metrics}
}

// QuoteRequest prices a product with options referenced by id.
type QuoteRequest struct {
	ProductID       string   `json:"productId" validate:"required,max=64"`
	Color           string   `json:"color,omitempty" validate:"max=64"`
	Material        string   `json:"material,omitempty" validate:"max=64"`
	Features        []string `json:"features,omitempty" validate:"unique,dive,required,max=64"`
	Region          string   `json:"region,omitempty" validate:"omitempty,alpha,max=32"`
	ShippingMethod  string   `json:"shippingMethod,omitempty" validate:"omitempty,max=32"`
	PromoCode       string   `json:"promoCode,omitempty" validate:"omitempty,alphanum,max=32"`
	DisableDiscount bool     `json:"disableDiscount,omitempty"`
	DisableTax      bool     `json:"disableTax,omitempty"`
	DisableShipping bool     `json:"disableShipping,omitempty"`
}

// Options returns the pricing options carried by the request.
func (q QuoteRequest) Options() Options {
	return Options{
		Region:          q.Region,
		ShippingMethod:  q.ShippingMethod,
		DisableDiscount: q.DisableDiscount,
		DisableTax:      q.DisableTax,
		DisableShipping: q.DisableShipping,
	}
}

// Quote is a breakdown plus the effect of an optional promo code. Total
// equals Breakdown.Total less the promo discount, and less shipping when the
// promo waives it.
type Quote struct {
	Breakdown Breakdown    `json:"breakdown"`
	Promo     *PromoResult `json:"promo,omitempty"`
	Total     Money        `json:"total"`
	Display   string       `json:"display"`
}

// PromoOn applies code to the subtotal of b, after the volume discount and
// before tax and shipping. Every promo entry point prices against this base.
func (e *Engine) PromoOn(b Breakdown, code string) PromoResult {
	return e.ApplyPromo(code, b.Subtotal)
}

// QuoteWithPromo prices b against code. The promo applies to the subtotal.
func (e *Engine) QuoteWithPromo(b Breakdown, code string) Quote {
	q := Quote{Breakdown: b, Total: b.Total}
	if strings.TrimSpace(code) != "" {
		res := e.PromoOn(b, code)
		q.Promo = &res
		if res.Valid {
			q.Total = q.Total.Sub(res.DiscountAmount)
			if res.WaivesShipping {
				q.Total = q.Total.Sub(b.Shipping)
			}
		}
	}
	q.Display = e.format(q.Total)
	return q
}

// PromoRequest applies a promo code to a price.
type PromoRequest struct {
	Code  string `json:"code" validate:"required,alphanum,max=32"`
	Price Money  `json:"price" validate:"-"`
}

// Quote handles POST /api/v1/quotes.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil || h.catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing not configured", nil)
		return
	}
	ctx, span := otel.Tracer("configurator.pricing").Start(r.Context(), "pricing.quote")
	defer span.End()

	var req QuoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	sel, err := ResolveSelection(&product, req.Color, req.Material, req.Features)
	if err != nil {
		writeError(w, err)
		return
	}
	breakdown := h.engine.Total(&product, sel, req.Options())
	span.SetAttributes(
		attribute.String("pricing.product_id", product.ID),
		attribute.String("pricing.region", req.Region),
		attribute.String("pricing.total", breakdown.Total.String()),
	)
	h.metrics.ObserveQuote(h.engine.Region(req.Region))

	quote := h.engine.QuoteWithPromo(breakdown, req.PromoCode)
	if quote.Promo != nil {
		h.metrics.ObservePromo(quote.Promo.Valid)
	}
	common.Data(w, http.StatusOK, quote)
}

// ApplyPromo handles POST /api/v1/promos/apply.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing not configured", nil)
		return
	}
	var req PromoRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(h.validate, req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Price.IsNegative() {
		common.WriteError(w, common.BadRequest("price", "price must not be negative", nil))
		return
	}
	res := h.engine.ApplyPromo(req.Code, req.Price)
	h.metrics.ObservePromo(res.Valid)
	common.Data(w, http.StatusOK, res)
}

// ShippingMethods handles GET /api/v1/shipping-methods.
func (h *Handler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.engine.ShippingMethods(r.URL.Query().Get("region")))
}

// PaymentMethods handles GET /api/v1/payment-methods.
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "pricing not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.engine.PaymentMethods(r.URL.Query().Get("region")))
}

// ErrUnknownOption reports an option id that the product does not offer.
var ErrUnknownOption = errors.New("pricing: unknown option")

// ResolveSelection maps option ids to the product's options. Empty ids select
// nothing; duplicate feature ids are rejected.
func ResolveSelection(product *catalog.Product, color, material string, features []string) (Selection, error) {
	var sel Selection
	if color != "" {
		opt, ok := product.FindOption(catalog.Colors, color)
		if !ok {
			return sel, fmt.Errorf("color %q: %w", color, ErrUnknownOption)
		}
		sel.Color = &opt
	}
	if material != "" {
		opt, ok := product.FindOption(catalog.Materials, material)
		if !ok {
			return sel, fmt.Errorf("material %q: %w", material, ErrUnknownOption)
		}
		sel.Material = &opt
	}
	seen := make(map[string]struct{}, len(features))
	for _, id := range features {
		if _, dup := seen[id]; dup {
			return sel, fmt.Errorf("feature %q selected twice: %w", id, ErrUnknownOption)
		}
		seen[id] = struct{}{}
		opt, ok := product.FindOption(catalog.Features, id)
		if !ok {
			return sel, fmt.Errorf("feature %q: %w", id, ErrUnknownOption)
		}
		sel.Features = append(sel.Features, opt)
	}
	return sel, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
	case errors.Is(err, ErrUnknownOption):
		common.JSONError(w, http.StatusUnprocessableEntity, common.CodeInvalidSelection, err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}

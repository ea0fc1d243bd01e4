package catalog

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-configurator/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	repo Repository
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Repository Repository
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{repo: cfg.Repository}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.Product)
	r.Get("/products/{id}/options/{group}", h.OptionGroup)
	r.Get("/products/{id}/related", h.Related)
	r.Get("/categories", h.Categories)
}

// ParseFilter normalises raw query values into a Filter.
func ParseFilter(values url.Values) (Filter, error) {
	filter := Filter{
		Category: strings.TrimSpace(values.Get("category")),
		Search:   strings.TrimSpace(values.Get("q")),
		Sort:     strings.TrimSpace(values.Get("sort")),
	}
	for _, bound := range []struct {
		field string
		dst   **decimal.Decimal
	}{{"minPrice", &filter.MinPrice}, {"maxPrice", &filter.MaxPrice}} {
		raw := strings.TrimSpace(values.Get(bound.field))
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			return filter, common.BadRequest(bound.field, bound.field+" must be a non-negative number", err)
		}
		*bound.dst = &v
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return filter, common.BadRequest("minPrice", "minPrice cannot exceed maxPrice", nil)
	}
	return filter, nil
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.repo.ListProducts(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	common.Data(w, http.StatusOK, items)
}

// Product handles GET /api/v1/products/{id}.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	product, err := h.repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, product)
}

// OptionGroup handles GET /api/v1/products/{id}/options/{group}.
func (h *Handler) OptionGroup(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	group, _ := ParseGroup(chi.URLParam(r, "group"))
	opts, err := h.repo.ListOptionGroup(r.Context(), chi.URLParam(r, "id"), group)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, opts)
}

// Related handles GET /api/v1/products/{id}/related.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	limit := common.QueryInt(r, "limit", DefaultRelatedLimit)
	items, err := h.repo.ListRelated(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "catalog not configured", nil)
		return
	}
	cats, err := h.repo.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, cats)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
		return
	}
	common.WriteError(w, err)
}

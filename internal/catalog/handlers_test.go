package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/catalog"
)

func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCatalogHandlers(t *testing.T) {
	handler := catalog.NewHandler(catalog.HandlerConfig{Repository: newStatic(t)})

	t.Run("products list with filters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=office&sort=price-desc", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

		var body struct {
			Data []catalog.Product `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, []string{"desk", "chair"}, ids(body.Data))
	})

	t.Run("invalid price bound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?minPrice=cheap", nil)
		rec := httptest.NewRecorder()
		handler.Products(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "minPrice")
	})

	t.Run("product detail", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/chair", nil), "id", "chair")
		rec := httptest.NewRecorder()
		handler.Product(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data catalog.Product `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "Office Chair", body.Data.Name)
	})

	t.Run("product not found", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/ghost", nil), "id", "ghost")
		rec := httptest.NewRecorder()
		handler.Product(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Contains(t, rec.Body.String(), "NOT_FOUND")
	})

	t.Run("option group", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/chair/options/colors", nil), "id", "chair", "group", "colors")
		rec := httptest.NewRecorder()
		handler.OptionGroup(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Data []catalog.Option `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 2)
	})

	t.Run("unknown option group is empty", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/chair/options/finishes", nil), "id", "chair", "group", "finishes")
		rec := httptest.NewRecorder()
		handler.OptionGroup(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"data":[]}`, rec.Body.String())
	})

	t.Run("related and categories", func(t *testing.T) {
		req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/products/chair/related?limit=1", nil), "id", "chair")
		rec := httptest.NewRecorder()
		handler.Related(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var related struct {
			Data []catalog.Product `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &related))
		require.Equal(t, []string{"desk"}, ids(related.Data))

		crec := httptest.NewRecorder()
		handler.Categories(crec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
		require.Equal(t, http.StatusOK, crec.Code)
		require.Contains(t, crec.Body.String(), "Living Room")
	})

	t.Run("unconfigured handler", func(t *testing.T) {
		rec := httptest.NewRecorder()
		catalog.NewHandler(catalog.HandlerConfig{}).Categories(rec, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

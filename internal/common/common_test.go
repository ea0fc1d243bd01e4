package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/common"
)

func TestWriteErrorUsesAppErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, common.BadRequest("region", "region is invalid", errors.New("boom")))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, common.CodeBadRequest, body.Error.Code)
	require.Equal(t, "region is invalid", body.Error.Message)
	require.Equal(t, map[string]any{"region": "region is invalid"}, body.Error.Details)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, errors.New("dial tcp: refused"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "dial tcp")
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, meta := common.Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, page)
	require.Equal(t, 5, meta.TotalItems)

	page, _ = common.Paginate(items, 3, 2)
	require.Equal(t, []int{5}, page)

	page, _ = common.Paginate(items, 9, 2)
	require.Empty(t, page)
}

func TestIdemRejectsReplay(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	calls := 0
	handler := common.Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/save", nil)
		req.Header.Set("Idempotency-Key", "k-1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, send())
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 1, calls)
}

func TestIdemReleasesKeyOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	statuses := []int{http.StatusServiceUnavailable, http.StatusUnprocessableEntity, http.StatusCreated}
	calls := 0
	handler := common.Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := statuses[calls]
		calls++
		common.JSONError(w, code, "X", "x", nil)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/save", nil)
		req.Header.Set("Idempotency-Key", "k-2")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusServiceUnavailable, send())
	require.Empty(t, mr.Keys(), "failed request must not keep the key")
	require.Equal(t, http.StatusUnprocessableEntity, send())
	require.Equal(t, http.StatusCreated, send())
	require.Len(t, mr.Keys(), 1)
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, 3, calls)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:4321"
	require.Equal(t, "10.0.0.9", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.7")
	require.Equal(t, "192.0.2.7", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	require.Equal(t, "203.0.113.5", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "192.0.2.7", common.ClientIP(req))
}

func TestParsePagination(t *testing.T) {
	page, perPage := common.ParsePagination(httptest.NewRequest(http.MethodGet, "/saved?page=3&limit=5", nil), 20)
	require.Equal(t, 3, page)
	require.Equal(t, 5, perPage)

	page, perPage = common.ParsePagination(httptest.NewRequest(http.MethodGet, "/saved?page=-1&limit=abc", nil), 20)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
}

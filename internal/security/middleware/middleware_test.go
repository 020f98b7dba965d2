package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tenantonboard/internal/observability/requestid"
	"github.com/yourorg/tenantonboard/internal/security/ratelimit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestid.From(r.Context())))
	})
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestID(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get(requestid.Header)
	require.NotEmpty(t, id)
	assert.Equal(t, id, rec.Body.String())
}

func TestRequestIDReusesInbound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestid.Header, "abc-123")
	rec := httptest.NewRecorder()
	RequestID(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(requestid.Header))

	req.Header.Set(requestid.Header, strings.Repeat("x", 200))
	rec = httptest.NewRecorder()
	RequestID(okHandler()).ServeHTTP(rec, req)
	assert.NotEqual(t, strings.Repeat("x", 200), rec.Header().Get(requestid.Header))
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tenant-prospectus", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestRecover(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, rec.Body.String())
}

func TestRateLimitByPathUUID(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()

	mux := http.NewServeMux()
	mux.Handle("GET /items/{id}/check", RateLimitByPathUUID(limiter, "id", discardLogger())(okHandler()))
	get := func(id string) int {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id+"/check", nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("7b0e4c1a-0000-4000-8000-000000000001"))
	assert.Equal(t, http.StatusTooManyRequests, get("7b0e4c1a-0000-4000-8000-000000000001"))
	assert.Equal(t, http.StatusOK, get("7b0e4c1a-0000-4000-8000-000000000002"))
}

func TestRateLimitByPathUUIDSharesBucketAcrossSpellings(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()

	calls := 0
	mux := http.NewServeMux()
	mux.Handle("GET /items/{id}/check", RateLimitByPathUUID(limiter, "id", discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }),
	))

	spellings := []string{
		"7b0e4c1a-0000-4000-8000-00000000abcd",
		"7B0E4C1A-0000-4000-8000-00000000ABCD",
		"urn:uuid:7b0e4c1a-0000-4000-8000-00000000abcd",
		"7b0e4c1a000040008000" + "00000000abcd",
	}
	codes := make([]int, 0, len(spellings))
	for _, id := range spellings {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id+"/check", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int{200, 429, 429, 429}, codes)
}

func TestRateLimitByPathUUIDPassesUnparseableIDs(t *testing.T) {
	limiter := ratelimit.NewLimiter(1, time.Minute)
	defer limiter.Stop()

	mux := http.NewServeMux()
	mux.Handle("GET /items/{id}/check", RateLimitByPathUUID(limiter, "id", discardLogger())(okHandler()))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/not-a-uuid/check", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestValidateJSONContentType(t *testing.T) {
	h := ValidateJSONContentType(discardLogger())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	Chain(okHandler(), mk("outer"), mk("inner")).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

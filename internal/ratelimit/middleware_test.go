package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrofitforge/twin/internal/model"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("backend down")
}
func (failingLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	m, _ := steppedLimiter(t, 1, 2)
	h := Middleware(m, IPKeyFunc, func(*http.Request) string { return "req-1" }, nil)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/presentation/next", nil)
		req.RemoteAddr = "192.0.2.7:50123"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			var body model.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
			assert.Equal(t, "req-1", body.Meta.RequestID)
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestMiddlewareFailsOpen(t *testing.T) {
	h := Middleware(failingLimiter{}, IPKeyFunc, nil, nil)(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareSkipsEmptyKey(t *testing.T) {
	m, _ := steppedLimiter(t, 1, 1)
	h := Middleware(m, func(*http.Request) string { return "" }, nil, nil)(okHandler())
	for range 5 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "ip:2001:db8::1", IPKeyFunc(req))

	req.RemoteAddr = "203.0.113.9:1234"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", IPKeyFunc(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", IPKeyFunc(req))
}

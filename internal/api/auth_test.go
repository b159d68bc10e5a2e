package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"courtbook/internal/config"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Name: "site", Key: "key-1", Extra: "extra-1", Permissions: []string{"read:availability", "write:bookings"}},
				{Name: "crm", Key: "key-2", Extra: "extra-2"},
			},
		},
	}
}

func runAuth(t *testing.T, cfg config.APIConfig, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	auth := NewHTTPAuth(cfg)
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?coach_id=1&date=2025-03-10", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHTTPAuth(t *testing.T) {
	cfg := authConfig()

	t.Run("missing headers", func(t *testing.T) {
		rec := runAuth(t, cfg, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid api key", func(t *testing.T) {
		rec := runAuth(t, cfg, func(r *http.Request) {
			r.Header.Set("x-api-key", "bogus")
			r.Header.Set("x-api-extra", "extra-1")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid extra", func(t *testing.T) {
		rec := runAuth(t, cfg, func(r *http.Request) {
			r.Header.Set("x-api-key", "key-1")
			r.Header.Set("x-api-extra", "wrong")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid credentials", func(t *testing.T) {
		rec := runAuth(t, cfg, func(r *http.Request) {
			r.Header.Set("x-api-key", "key-1")
			r.Header.Set("x-api-extra", "extra-1")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty permissions allow all", func(t *testing.T) {
		rec := runAuth(t, cfg, func(r *http.Request) {
			r.Header.Set("x-api-key", "key-2")
			r.Header.Set("x-api-extra", "extra-2")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("permission denied for admin paths", func(t *testing.T) {
		auth := NewHTTPAuth(cfg)
		handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/regenerate", nil)
		req.Header.Set("x-api-key", "key-1")
		req.Header.Set("x-api-extra", "extra-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("disabled auth passes through", func(t *testing.T) {
		rec := runAuth(t, config.APIConfig{}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHTTPAuthRateLimit(t *testing.T) {
	cfg := authConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}

	auth := NewHTTPAuth(cfg)
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/coaches", nil)
		req.Header.Set("x-api-key", "key-2")
		req.Header.Set("x-api-extra", "extra-2")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes[2:], http.StatusTooManyRequests)
}

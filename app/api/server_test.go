package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "secret")

	tests := []struct {
		name       string
		headers    []string
		wantStatus int
	}{
		{"no key", nil, http.StatusUnauthorized},
		{"wrong key", []string{"X-API-Key", "nope"}, http.StatusUnauthorized},
		{"header key", []string{"X-API-Key", "secret"}, http.StatusOK},
		{"bearer token", []string{"Authorization", "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/subscriptions", nil, tt.headers...)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestUserHeader(t *testing.T) {
	env := newTestEnv(t, "")
	env.createSubscription(t, "alice", "default user's", "https://a.example.com/rss")
	env.createSubscription(t, "carol", "carol's", "https://c.example.com/rss")

	list := decode[[]subscriptionResponse](t, env.do(t, http.MethodGet, "/api/subscriptions", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "default user's", list[0].Name)

	list = decode[[]subscriptionResponse](t, env.do(t, http.MethodGet, "/api/subscriptions", nil, "X-User", "carol"))
	require.Len(t, list, 1)
	assert.Equal(t, "carol's", list[0].Name)
}

func TestSync(t *testing.T) {
	env := newTestEnv(t, "secret")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := env.do(t, method, "/sync", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"added":2,"updated":1,"deleted":0}`, w.Body.String())
	}
	assert.Equal(t, int32(2), env.engine.calls.Load())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	env.createSubscription(t, "alice", "a", "https://a.example.com/rss")

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	health := decode[map[string]any](t, w)
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["subscriptions"])
	assert.EqualValues(t, 1, health["source_links"])
	assert.Equal(t, map[string]any{"status": "healthy", "type": "redis"}, health["cache"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, "secret")

	w := env.do(t, http.MethodOptions, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

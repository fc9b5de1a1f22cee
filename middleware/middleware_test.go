package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"contact-metrics/middleware"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORS(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	corsHandler := middleware.CORS([]string{"http://localhost:5173", "http://example.com"})(handler)

	tests := map[string]struct {
		origin   string
		method   string
		expected string
	}{
		"AllowedOrigin":      {origin: "http://localhost:5173", method: http.MethodGet, expected: "http://localhost:5173"},
		"AnotherAllowed":     {origin: "http://example.com", method: http.MethodPost, expected: "http://example.com"},
		"DisallowedOrigin":   {origin: "http://evil.com", method: http.MethodGet, expected: ""},
		"PreflightRequest":   {origin: "http://localhost:5173", method: http.MethodOptions, expected: "http://localhost:5173"},
		"NoOriginHeaderSent": {method: http.MethodGet, expected: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/reports", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}

			rec := httptest.NewRecorder()
			corsHandler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestLogger(t *testing.T) {
	tests := map[string]struct {
		status int
		level  string
	}{
		"OK":          {status: http.StatusOK, level: "info"},
		"BadRequest":  {status: http.StatusBadRequest, level: "warn"},
		"ServerError": {status: http.StatusInternalServerError, level: "error"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte("body"))
			})
			logged := chimiddleware.RequestID(middleware.Logger(zerolog.New(&buf))(handler))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			logged.ServeHTTP(rec, req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "GET", entry["method"])
			assert.Equal(t, "/health", entry["path"])
			assert.Equal(t, float64(tt.status), entry["status"])
			assert.Equal(t, float64(4), entry["bytes"])
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "request completed", entry["message"])
			assert.NotEmpty(t, entry["request_id"])
		})
	}
}

func TestLogger_ImplicitStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	middleware.Logger(zerolog.New(&buf))(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(200), entry["status"])
}

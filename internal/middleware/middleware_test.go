package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/onnwee/galleria/internal/auth"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/reactions/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured == "" {
		t.Error("Expected a generated request id")
	}
	if got := w.Header().Get(RequestIDHeader); got != captured {
		t.Errorf("Expected response header %q, got %q", captured, got)
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-supplied-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if captured != "client-supplied-id" {
		t.Errorf("Expected client-supplied-id, got %q", captured)
	}
}

func TestRequestID_ReplacesMalformed(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"oversized", strings.Repeat("a", maxRequestIDLength+1)},
		{"control characters", "abc\ndef"},
		{"whitespace", "abc def"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.id)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if captured == tt.id {
				t.Errorf("Malformed id %q must be replaced", tt.id)
			}
			if captured == "" {
				t.Error("Expected a generated replacement id")
			}
		})
	}
}

func TestIdentity_BearerToken(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	token, err := svc.GenerateAccessToken("user-123", "profile-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	var viewer auth.Identity
	handler := Identity(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer = GetViewer(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if viewer.Subject != "user-123" {
		t.Errorf("Expected subject user-123, got %q", viewer.Subject)
	}
	if viewer.Level != auth.LevelAuthenticated {
		t.Errorf("Expected authenticated level, got %s", viewer.Level)
	}
}

func TestIdentity_InvalidBearerRejected(t *testing.T) {
	svc := auth.NewJWTService("test-secret")
	handler := Identity(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not run for invalid token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", w.Code)
	}
}

func TestIdentity_AnonHeader(t *testing.T) {
	svc := auth.NewJWTService("test-secret")

	var viewer auth.Identity
	handler := Identity(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer = GetViewer(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", nil)
	req.Header.Set(AnonIDHeader, "device-abc123xyz")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if viewer.Subject != "anon:device-abc123xyz" {
		t.Errorf("Expected namespaced anon subject, got %q", viewer.Subject)
	}
	if viewer.Level != auth.LevelAnonymous {
		t.Errorf("Expected anonymous level, got %s", viewer.Level)
	}
}

func TestIdentity_MalformedAnonIgnored(t *testing.T) {
	svc := auth.NewJWTService("test-secret")

	var viewer auth.Identity
	handler := Identity(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer = GetViewer(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/reactions/stats", nil)
	req.Header.Set(AnonIDHeader, "x!")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected request to proceed, got %d", w.Code)
	}
	if viewer.Subject != "" {
		t.Errorf("Expected no identity, got %q", viewer.Subject)
	}
}

func TestUpdateResponseContext_PropagatesErrorCode(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetErrorCode(r.Context(), "not_found")
		UpdateResponseContext(w, ctx)
		w.WriteHeader(http.StatusNotFound)
	})

	rw := newResponseWriter(httptest.NewRecorder())
	inner.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))

	if rw.ctx == nil {
		t.Fatal("Expected context to be propagated")
	}
	if got := GetErrorCode(rw.ctx); got != "not_found" {
		t.Errorf("Expected error code not_found, got %q", got)
	}
	if rw.statusCode != http.StatusNotFound {
		t.Errorf("Expected captured status 404, got %d", rw.statusCode)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}

	handler := RateLimiter(store, config, IPKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Request %d should pass, got %d", i+1, w.Code)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimiter_ToggleLimitPerViewer(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := DefaultToggleLimit()
	if err := config.Validate(); err != nil {
		t.Fatalf("DefaultToggleLimit invalid: %v", err)
	}

	handler := RateLimiter(store, config, ViewerKeyFunc())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	toggle := func(subject string) int {
		req := httptest.NewRequest(http.MethodPost, "/reactions/toggle", nil)
		req = req.WithContext(SetViewer(req.Context(), auth.Identity{
			Subject: subject,
			Level:   auth.LevelAuthenticated,
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < config.RequestsPerWindow; i++ {
		if code := toggle("user-a"); code != http.StatusOK {
			t.Fatalf("Toggle %d should pass, got %d", i+1, code)
		}
	}
	if code := toggle("user-a"); code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 past the toggle window, got %d", code)
	}

	// The window is per viewer, not shared.
	if code := toggle("user-b"); code != http.StatusOK {
		t.Errorf("Expected another viewer to pass, got %d", code)
	}
}

func TestViewerKeyFunc_PrefersIdentity(t *testing.T) {
	keyFunc := ViewerKeyFunc()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(SetViewer(req.Context(), auth.Identity{
		Subject: "user-123",
		Level:   auth.LevelAuthenticated,
	}))

	if got := keyFunc(req); got != "viewer:user-123" {
		t.Errorf("Expected viewer key, got %q", got)
	}

	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := keyFunc(plain); !strings.HasPrefix(got, "ip:") {
		t.Errorf("Expected ip fallback, got %q", got)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/reactions/toggle", "/reactions/toggle"},
		{"/content/abc123/access", "/content/{id}/access"},
		{"/content/abc123/preview", "/content/{id}/preview"},
		{"/content/abc123", "/content/{id}"},
		{"/unknown/route", "/unknown/route"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/reactions/stats", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	var requests *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal {
			requests = mf
		}
	}
	if requests == nil {
		t.Fatalf("Expected %s to be recorded", MetricHTTPRequestsTotal)
	}
	if len(requests.GetMetric()) != 1 {
		t.Fatalf("Expected one series, got %d", len(requests.GetMetric()))
	}
	if got := requests.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("Expected counter value 1, got %f", got)
	}
	for _, label := range requests.GetMetric()[0].GetLabel() {
		if label.GetName() == "path" && label.GetValue() != "/reactions/stats" {
			t.Errorf("Expected path label /reactions/stats, got %s", label.GetValue())
		}
	}
}

func TestHTTPMetrics_SkipsHealth(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == MetricHTTPRequestsTotal && len(mf.GetMetric()) > 0 {
			t.Error("Health checks must not be recorded")
		}
	}
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}
}

func TestCORS_PreflightAllowsAnonHeader(t *testing.T) {
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/reactions/toggle", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), AnonIDHeader) {
		t.Errorf("Expected %s in allowed headers, got %q", AnonIDHeader, w.Header().Get("Access-Control-Allow-Headers"))
	}
}

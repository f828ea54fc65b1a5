package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsHandler(t *testing.T, origins []string) (http.Handler, *bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})
	return CORS(origins)(next), &reached
}

func TestCORS_OriginHandling(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		wantAllow bool
	}{
		{"localhost any port", "http://localhost:5173", true},
		{"https localhost", "https://localhost", true},
		{"configured origin", "https://photos.example.com", true},
		{"unknown origin", "https://evil.example.com", false},
		{"localhost lookalike", "http://localhost.evil.com", false},
		{"no origin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := corsHandler(t, []string{"https://photos.example.com"})

			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			handler.ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllow && got != tt.origin {
				t.Errorf("expected origin %q to be reflected, got %q", tt.origin, got)
			}
			if !tt.wantAllow && got != "" {
				t.Errorf("expected no allow-origin header, got %q", got)
			}
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	handler, reached := corsHandler(t, nil)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/match", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", recorder.Code)
	}
	if *reached {
		t.Error("preflight request must not reach the next handler")
	}
	if recorder.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected allow-methods header on preflight")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
	if recorder.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected content security policy header")
	}
}

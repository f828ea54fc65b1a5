package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Storage: config.StorageConfig{
			UploadDir: t.TempDir(),
			OutputDir: t.TempDir(),
		},
	}

	store, err := results.NewStore(cfg.Storage.OutputDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	m := matcher.New(detector.Unavailable{})
	s := NewServer(cfg, 0, "127.0.0.1", "test-secret", m, store, nil)
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
	})
	return s
}

func TestServer_HealthCheck(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", recorder.Code)
	}
}

func TestServer_SessionCookieIssued(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/results", nil))

	var found bool
	for _, c := range recorder.Result().Cookies() {
		if c.Name == "face_finder_session" {
			found = true
		}
	}
	if !found {
		t.Error("expected session cookie on first API request")
	}
}

func TestServer_DriveEndpointsReport503WithoutClient(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drive/folders", nil)
	s.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without drive client, got %d", recorder.Code)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}

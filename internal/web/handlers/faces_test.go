package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/matcher"
)

func TestLoadImage_InvalidBody(t *testing.T) {
	h := NewFacesHandler(matcher.New(&stubDetector{}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load", strings.NewReader("not json"))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestLoadImage_MissingPath(t *testing.T) {
	h := NewFacesHandler(matcher.New(&stubDetector{}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load", jsonBody(t, LoadImageRequest{}))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestLoadImage_UnreadableImage(t *testing.T) {
	h := NewFacesHandler(matcher.New(&stubDetector{faces: stubFaces([]float32{1, 0})}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load",
		jsonBody(t, LoadImageRequest{Path: "/nonexistent/ref.jpg"}))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
}

func TestLoadImage_DetectorUnavailable(t *testing.T) {
	path := writeTestJPEG(t, t.TempDir(), "ref.jpg")
	h := NewFacesHandler(matcher.New(detector.Unavailable{}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load",
		jsonBody(t, LoadImageRequest{Path: path}))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestLoadImage_ReturnsFacesWithCrops(t *testing.T) {
	path := writeTestJPEG(t, t.TempDir(), "ref.jpg")
	det := &stubDetector{faces: stubFaces([]float32{1, 0}, []float32{0, 1})}
	h := NewFacesHandler(matcher.New(det), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load",
		jsonBody(t, LoadImageRequest{Path: path}))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp LoadImageResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(resp.Faces))
	}
	for i, f := range resp.Faces {
		if f.FaceIndex != i {
			t.Errorf("face %d: unexpected index %d", i, f.FaceIndex)
		}
		if f.Crop == "" {
			t.Errorf("face %d: expected base64 crop", i)
		}
		if len(f.BBox) != 4 {
			t.Errorf("face %d: expected 4-element bbox, got %v", i, f.BBox)
		}
	}
}

func TestLoadImage_NoFacesIsEmptyList(t *testing.T) {
	path := writeTestJPEG(t, t.TempDir(), "ref.jpg")
	h := NewFacesHandler(matcher.New(&stubDetector{}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/image/load",
		jsonBody(t, LoadImageRequest{Path: path}))
	h.LoadImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp LoadImageResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Faces) != 0 {
		t.Errorf("expected empty face list, got %d", len(resp.Faces))
	}
}

func TestSetFace_NoSession(t *testing.T) {
	h := NewFacesHandler(matcher.New(&stubDetector{}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/face/set",
		jsonBody(t, SetFaceRequest{Path: "x.jpg"}))
	h.SetFace(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnauthorized)
}

func TestSetFace_InvalidIndex(t *testing.T) {
	path := writeTestJPEG(t, t.TempDir(), "ref.jpg")
	h := NewFacesHandler(matcher.New(&stubDetector{faces: stubFaces([]float32{1, 0})}), newTestRefs(t))

	recorder := httptest.NewRecorder()
	req := requestWithSession(t, http.MethodPost, "/api/v1/face/set",
		jsonBody(t, SetFaceRequest{Path: path, FaceIndex: 5}))
	h.SetFace(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestSetFace_StoresReferenceForSession(t *testing.T) {
	path := writeTestJPEG(t, t.TempDir(), "ref.jpg")
	refs := newTestRefs(t)
	h := NewFacesHandler(matcher.New(&stubDetector{faces: stubFaces([]float32{3, 4})}), refs)

	recorder := httptest.NewRecorder()
	req := requestWithSession(t, http.MethodPost, "/api/v1/face/set",
		jsonBody(t, SetFaceRequest{Path: path, FaceIndex: 0}))
	h.SetFace(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	emb, err := refs.Get("test-session")
	if err != nil {
		t.Fatalf("expected reference to be stored for session: %v", err)
	}
	// Stored embedding is normalized.
	normSq := emb[0]*emb[0] + emb[1]*emb[1]
	if normSq < 0.999 || normSq > 1.001 {
		t.Errorf("stored embedding not normalized, squared norm %f", normSq)
	}
}

func TestClearFace(t *testing.T) {
	refs := newTestRefs(t)
	refs.Set("test-session", []float32{1, 0})
	h := NewFacesHandler(matcher.New(&stubDetector{}), refs)

	recorder := httptest.NewRecorder()
	req := requestWithSession(t, http.MethodDelete, "/api/v1/face", nil)
	h.ClearFace(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if _, err := refs.Get("test-session"); !errors.Is(err, matcher.ErrNoReference) {
		t.Errorf("expected reference to be cleared, got %v", err)
	}
}

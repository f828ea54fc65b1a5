package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
	"github.com/kozaktomas/face-finder/internal/web/middleware"
)

// stubDetector returns a fixed set of faces for every image.
type stubDetector struct {
	faces []detector.Face
	err   error
}

func (d *stubDetector) DetectFaces(ctx context.Context, imageData []byte) ([]detector.Face, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.faces, nil
}

func stubFaces(embeddings ...[]float32) []detector.Face {
	faces := make([]detector.Face, 0, len(embeddings))
	for i, emb := range embeddings {
		faces = append(faces, detector.Face{
			FaceIndex: i,
			Dim:       len(emb),
			Embedding: emb,
			BBox:      []float64{0, 0, 16, 16},
			DetScore:  0.95,
		})
	}
	return faces
}

// testSession returns a request carrying a session in its context.
func requestWithSession(t *testing.T, method, path string, body io.Reader) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	ctx := middleware.SetSessionInContext(req.Context(), &middleware.Session{ID: "test-session"})
	return req.WithContext(ctx)
}

// requestWithChiParams attaches chi URL parameters to a request.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonBody marshals a value into a request body.
func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

// parseJSONResponse parses a JSON response body into the target type.
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code.
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// writeTestJPEG writes a small decodable JPEG into dir and returns its path.
func writeTestJPEG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return path
}

// fakeDriveLister serves a canned Drive folder tree.
type fakeDriveLister struct {
	tree     map[string][]drive.Item
	contents map[string]string
}

func (f *fakeDriveLister) ListChildren(ctx context.Context, folderID string) ([]drive.Item, error) {
	return f.tree[folderID], nil
}

func (f *fakeDriveLister) Download(ctx context.Context, fileID string, w io.Writer) error {
	_, err := io.WriteString(w, f.contents[fileID])
	return err
}

// fakeUploader records remote uploads.
type fakeUploader struct {
	uploaded []string
}

func (f *fakeUploader) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	return "folder-id", nil
}

func (f *fakeUploader) UploadFile(ctx context.Context, localPath, name, parentID string) (string, error) {
	f.uploaded = append(f.uploaded, name)
	return "file-id", nil
}

// newTestStore creates a results store in a temp directory.
func newTestStore(t *testing.T) *results.Store {
	t.Helper()
	store, err := results.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create results store: %v", err)
	}
	return store
}

// newTestRefs creates a reference store cleaned up with the test.
func newTestRefs(t *testing.T) *matcher.ReferenceStore {
	t.Helper()
	refs := matcher.NewReferenceStore()
	t.Cleanup(refs.Stop)
	return refs
}

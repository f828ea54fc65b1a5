package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"log"
	"net/http"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/imaging"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/web/middleware"
)

// FacesHandler handles reference face detection and selection.
type FacesHandler struct {
	matcher *matcher.Matcher
	refs    *matcher.ReferenceStore
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(m *matcher.Matcher, refs *matcher.ReferenceStore) *FacesHandler {
	return &FacesHandler{
		matcher: m,
		refs:    refs,
	}
}

// LoadImageRequest is the request body for face detection on an image.
type LoadImageRequest struct {
	Path string `json:"path"`
}

// DetectedFace is a single face detected in a reference image, with a cropped
// preview for the selection UI.
type DetectedFace struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
	Crop      string    `json:"crop,omitempty"`
}

// LoadImageResponse lists the faces found in a reference image.
type LoadImageResponse struct {
	Path  string         `json:"path"`
	Faces []DetectedFace `json:"faces"`
}

// LoadImage runs face detection on a local image and returns all detected
// faces with base64 JPEG crops, so the client can pick the reference face.
func (h *FacesHandler) LoadImage(w http.ResponseWriter, r *http.Request) {
	var req LoadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	faces, err := h.matcher.DetectInFile(r.Context(), req.Path, constants.DisplayMaxImageSize)
	if err != nil {
		respondDetectionError(w, req.Path, err)
		return
	}

	resp := LoadImageResponse{Path: req.Path, Faces: make([]DetectedFace, 0, len(faces))}
	crops := cropFaces(req.Path, faces)
	for i, f := range faces {
		resp.Faces = append(resp.Faces, DetectedFace{
			FaceIndex: f.FaceIndex,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
			Crop:      crops[i],
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// SetFaceRequest selects one detected face as the session's reference.
type SetFaceRequest struct {
	Path      string `json:"path"`
	FaceIndex int    `json:"face_index"`
}

// SetFace re-runs detection on the image, extracts the embedding of the chosen
// face and stores it as the session's reference.
func (h *FacesHandler) SetFace(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req SetFaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	embedding, err := h.matcher.SelectReference(r.Context(), req.Path, req.FaceIndex)
	if err != nil {
		var idxErr *matcher.InvalidIndexError
		if errors.As(err, &idxErr) {
			respondError(w, http.StatusBadRequest, idxErr.Error())
			return
		}
		respondDetectionError(w, req.Path, err)
		return
	}

	h.refs.Set(session.ID, embedding)
	log.Printf("Reference face set from %s (index %d)", sanitizeForLog(req.Path), req.FaceIndex)

	respondJSON(w, http.StatusOK, map[string]any{
		"path":       req.Path,
		"face_index": req.FaceIndex,
	})
}

// ClearFace removes the session's reference face.
func (h *FacesHandler) ClearFace(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	h.refs.Clear(session.ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// respondDetectionError maps detection pipeline errors to HTTP status codes.
func respondDetectionError(w http.ResponseWriter, path string, err error) {
	switch {
	case errors.Is(err, matcher.ErrImageUnreadable):
		respondError(w, http.StatusUnprocessableEntity, "image could not be read")
	case errors.Is(err, matcher.ErrNoFaces):
		respondError(w, http.StatusUnprocessableEntity, "no faces detected in image")
	case errors.Is(err, detector.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "face detection service unavailable")
	default:
		log.Printf("Detection failed for %s: %v", sanitizeForLog(path), err)
		respondError(w, http.StatusInternalServerError, "face detection failed")
	}
}

// cropFaces cuts each face bbox out of the image and encodes it as a base64
// JPEG. Bboxes are relative to the resized image the detector saw, so the
// image is resized the same way before cropping. Failed crops come back empty.
func cropFaces(path string, faces []detector.Face) []string {
	crops := make([]string, len(faces))

	img, ok := imaging.Load(path)
	if !ok {
		return crops
	}
	img = imaging.ResizeBounded(img, constants.DisplayMaxImageSize)

	for i, f := range faces {
		if len(f.BBox) < 4 {
			continue
		}
		rect := image.Rect(int(f.BBox[0]), int(f.BBox[1]), int(f.BBox[2]), int(f.BBox[3]))
		crop, ok := imaging.Crop(img, rect)
		if !ok {
			continue
		}
		data, err := imaging.EncodeJPEG(crop, constants.CacheJPEGQuality)
		if err != nil {
			continue
		}
		crops[i] = base64.StdEncoding.EncodeToString(data)
	}
	return crops
}

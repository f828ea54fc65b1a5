package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
	"github.com/kozaktomas/face-finder/internal/web/middleware"
)

// MatchHandler handles match run endpoints. It keeps the candidate list and
// face index of the last completed run so a new reference can be re-scored
// without re-running detection.
type MatchHandler struct {
	matcher    *matcher.Matcher
	refs       *matcher.ReferenceStore
	jobManager *JobManager
	store      *results.Store

	mu        sync.Mutex
	lastPaths []string
	lastIndex *matcher.RunIndex
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(m *matcher.Matcher, refs *matcher.ReferenceStore, jm *JobManager, store *results.Store) *MatchHandler {
	return &MatchHandler{
		matcher:    m,
		refs:       refs,
		jobManager: jm,
		store:      store,
	}
}

// MatchStartRequest represents a match start request.
type MatchStartRequest struct {
	Paths []string `json:"paths"`
}

// Start starts an async match run over the given candidate image paths. The
// session's reference embedding is captured once at start, so changing the
// reference mid-run does not affect the run.
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req MatchStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Paths) == 0 {
		respondError(w, http.StatusBadRequest, "paths is required")
		return
	}

	reference, err := h.refs.Get(session.ID)
	if errors.Is(err, matcher.ErrNoReference) {
		respondError(w, http.StatusConflict, matcher.ErrNoReference.Error())
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, len(req.Paths))

	go h.runMatchJob(job, req.Paths, reference)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       jobID,
		"total_images": len(req.Paths),
		"status":       string(JobStatusPending),
	})
}

// runMatchJob executes the match run in the background.
func (h *MatchHandler) runMatchJob(job *MatchJob, paths []string, reference []float32) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job.SetCancel(cancel)

	job.SetStatus(JobStatusRunning)
	job.SendEvent(JobEvent{Type: "started", Data: map[string]int{"total": len(paths)}})

	index := matcher.NewRunIndex()
	set, err := h.matcher.Run(ctx, paths, reference, index, func(p matcher.Progress) {
		job.SetProgress(p.Done)
		job.SendEvent(JobEvent{
			Type: "progress",
			Data: map[string]any{"done": p.Done, "total": p.Total, "path": p.Path},
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Cancel() already set the status and notified listeners.
			return
		}
		log.Printf("Match run %s failed: %v", job.ID, err)
		job.Fail(err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
		return
	}

	if err := h.store.Save(set); err != nil {
		log.Printf("Saving results for run %s failed: %v", job.ID, err)
		job.Fail(err.Error())
		job.SendEvent(JobEvent{Type: "failed", Message: err.Error()})
		return
	}

	h.mu.Lock()
	h.lastPaths = paths
	h.lastIndex = index
	h.mu.Unlock()

	result := &MatchJobResult{Matched: set.Matched(), Total: len(set)}
	job.Complete(result)
	job.SendEvent(JobEvent{Type: "completed", Data: result})
}

// Status returns the status of a match job.
func (h *MatchHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromRequest(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.View())
}

// Events streams match job events via SSE.
func (h *MatchHandler) Events(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromRequest(w, r)
	if job == nil {
		return
	}
	streamSSEEvents(w, r, job)
}

// Cancel cancels a running match job.
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.jobFromRequest(w, r)
	if job == nil {
		return
	}

	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusCancelled),
	})
}

// Rescore re-scores the last completed run against the session's current
// reference using the retained face index, skipping detection entirely.
func (h *MatchHandler) Rescore(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	reference, err := h.refs.Get(session.ID)
	if errors.Is(err, matcher.ErrNoReference) {
		respondError(w, http.StatusConflict, matcher.ErrNoReference.Error())
		return
	}

	h.mu.Lock()
	paths, index := h.lastPaths, h.lastIndex
	h.mu.Unlock()

	if index == nil {
		respondError(w, http.StatusConflict, "no completed run to rescore")
		return
	}

	set := h.matcher.Rescore(paths, reference, index)
	if err := h.store.Save(set); err != nil {
		log.Printf("Saving rescored results failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to save results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"matched": set.Matched(),
		"total":   len(set),
	})
}

const (
	similarDefaultLimit = 10
	similarMaxLimit     = 100
)

// Similar returns the retained faces of the last completed run closest to the
// session's current reference, most similar first. Backed by the run's
// approximate nearest neighbor index, so it stays fast on large runs.
func (h *MatchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "no session")
		return
	}

	reference, err := h.refs.Get(session.ID)
	if errors.Is(err, matcher.ErrNoReference) {
		respondError(w, http.StatusConflict, matcher.ErrNoReference.Error())
		return
	}

	h.mu.Lock()
	index := h.lastIndex
	h.mu.Unlock()

	if index == nil {
		respondError(w, http.StatusConflict, "no completed run to query")
		return
	}

	limit := similarDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, similarMaxLimit)
	}

	faces := index.Nearest(reference, limit)
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(faces),
		"faces": faces,
	})
}

// Results returns the stored result set of the last run.
func (h *MatchHandler) Results(w http.ResponseWriter, r *http.Request) {
	set, err := h.store.Load()
	if err != nil {
		if errors.Is(err, results.ErrNoResults) {
			respondError(w, http.StatusNotFound, "no results available")
			return
		}
		log.Printf("Loading results failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load results")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"matched": set.Matched(),
		"total":   len(set),
		"records": set,
	})
}

// jobFromRequest resolves the jobId URL parameter to a job, writing an error
// response and returning nil when it cannot.
func (h *MatchHandler) jobFromRequest(w http.ResponseWriter, r *http.Request) *MatchJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

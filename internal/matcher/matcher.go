// Package matcher implements the face matching pipeline: reference selection,
// cosine scoring of candidate images and the per-run face index.
package matcher

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/face-finder/internal/constants"
	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/imaging"
)

// MatchRecord is the result for a single candidate image. An unreadable image
// or one with no detected faces always yields a zero record, never an error.
type MatchRecord struct {
	ImagePath     string  `json:"image_path"`
	MaxSimilarity float64 `json:"max_similarity"`
	FaceCount     int     `json:"face_count"`
	IsMatch       bool    `json:"is_match"`
}

// ResultSet is the full set of records for one matching run, in candidate
// input order.
type ResultSet []MatchRecord

// Matched returns the number of matching records.
func (rs ResultSet) Matched() int {
	n := 0
	for _, r := range rs {
		if r.IsMatch {
			n++
		}
	}
	return n
}

// Matcher scores candidate images against a reference embedding.
type Matcher struct {
	det       detector.Detector
	workers   int
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWorkers sets the worker pool size for match runs.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithThreshold overrides the match threshold. Exposed for the CLI; the web
// surface always uses the default.
func WithThreshold(t float64) Option {
	return func(m *Matcher) {
		if t > 0 {
			m.threshold = t
		}
	}
}

// New creates a Matcher using the given detector.
func New(det detector.Detector, opts ...Option) *Matcher {
	m := &Matcher{
		det:       det,
		workers:   constants.WorkerPoolSize,
		threshold: constants.SimilarityThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the similarity threshold in effect.
func (m *Matcher) Threshold() float64 { return m.threshold }

// DetectInFile loads an image, resizes it to maxDim and runs face detection.
// Faces come back with stable indices 0..N-1 in provider order.
func (m *Matcher) DetectInFile(ctx context.Context, path string, maxDim int) ([]detector.Face, error) {
	img, ok := imaging.Load(path)
	if !ok {
		return nil, ErrImageUnreadable
	}

	data, err := imaging.EncodeJPEG(imaging.ResizeBounded(img, maxDim), constants.CacheJPEGQuality)
	if err != nil {
		return nil, ErrImageUnreadable
	}

	return m.det.DetectFaces(ctx, data)
}

// SelectReference re-runs detection on the image and returns the normalized
// embedding of the face at faceIndex. Faces are not cached between the
// display and select calls, so detection runs twice per selection.
func (m *Matcher) SelectReference(ctx context.Context, path string, faceIndex int) ([]float32, error) {
	faces, err := m.DetectInFile(ctx, path, constants.DisplayMaxImageSize)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}
	if faceIndex < 0 || faceIndex >= len(faces) {
		return nil, &InvalidIndexError{Index: faceIndex, Count: len(faces)}
	}
	return Normalize(faces[faceIndex].Embedding), nil
}

// Progress reports match run progress to an optional callback.
type Progress struct {
	Done  int
	Total int
	Path  string
}

// Run scores every candidate path against the reference embedding using a
// bounded worker pool. Output has exactly one record per input path, in input
// order; per-image failures are absorbed into zero records and never cancel
// sibling work. When index is non-nil, every detected face embedding is
// retained in it for later re-scoring.
//
// Run only returns an error when the context is cancelled.
func (m *Matcher) Run(ctx context.Context, paths []string, reference []float32, index *RunIndex, onProgress func(Progress)) (ResultSet, error) {
	results := make(ResultSet, len(paths))
	jobs := make(chan int)
	var done atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < m.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = m.scoreImage(ctx, paths[i], reference, index)
				if onProgress != nil {
					onProgress(Progress{Done: int(done.Add(1)), Total: len(paths), Path: paths[i]})
				}
			}
		}()
	}

	var runErr error
feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if runErr != nil {
		return nil, runErr
	}
	return results, nil
}

// scoreImage produces the MatchRecord for a single candidate image.
func (m *Matcher) scoreImage(ctx context.Context, path string, reference []float32, index *RunIndex) MatchRecord {
	record := MatchRecord{ImagePath: path}

	faces, err := m.DetectInFile(ctx, path, constants.MatchMaxImageSize)
	if err != nil || len(faces) == 0 {
		// Unreadable image or no faces: zero record, keep going.
		return record
	}

	// Seed from the first face so a best score below zero survives; cosine
	// ranges over [-1, 1] and a zero would collide with the faceless record.
	maxSim := Cosine(reference, faces[0].Embedding)
	for _, f := range faces[1:] {
		if sim := Cosine(reference, f.Embedding); sim > maxSim {
			maxSim = sim
		}
	}
	if index != nil {
		index.AddFaces(path, faces)
	}

	record.MaxSimilarity = maxSim
	record.FaceCount = len(faces)
	record.IsMatch = maxSim >= m.threshold
	return record
}

// Rescore rebuilds a ResultSet from the retained run index against a new
// reference, without re-running detection. Paths must be the candidate list of
// the indexed run.
func (m *Matcher) Rescore(paths []string, reference []float32, index *RunIndex) ResultSet {
	results := make(ResultSet, len(paths))
	for i, path := range paths {
		record := MatchRecord{ImagePath: path}
		embeddings := index.Faces(path)
		if len(embeddings) > 0 {
			maxSim := Cosine(reference, embeddings[0])
			for _, emb := range embeddings[1:] {
				if sim := Cosine(reference, emb); sim > maxSim {
					maxSim = sim
				}
			}
			record.MaxSimilarity = maxSim
			record.FaceCount = len(embeddings)
			record.IsMatch = maxSim >= m.threshold
		}
		results[i] = record
	}
	return results
}

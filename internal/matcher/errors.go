package matcher

import (
	"errors"
	"fmt"
)

// Sentinel errors for single-image operations. Batch matching never surfaces
// these; per-image failures become zero-similarity records instead.
var (
	// ErrImageUnreadable means the source image is missing or undecodable.
	ErrImageUnreadable = errors.New("image could not be read")

	// ErrNoFaces means detection ran but found no faces in an image the
	// caller expected a face from.
	ErrNoFaces = errors.New("no faces detected in image")

	// ErrNoReference means a match was attempted before a reference face was
	// set for the session.
	ErrNoReference = errors.New("no reference face set")
)

// InvalidIndexError reports a user-chosen face index outside the detected
// range, carrying enough context for the caller to self-correct.
type InvalidIndexError struct {
	Index int
	Count int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid face index %d: found %d faces", e.Index, e.Count)
}

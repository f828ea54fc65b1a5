// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Matching constants
const (
	// SimilarityThreshold is the cosine similarity above which a candidate
	// image counts as a match
	SimilarityThreshold = 0.35

	// MatchMaxImageSize is the maximum dimension (width or height) for
	// candidate images before face detection
	MatchMaxImageSize = 1280

	// DisplayMaxImageSize is the maximum dimension for images shown in the
	// face picker
	DisplayMaxImageSize = 1024

	// WorkerPoolSize is the default number of parallel workers for a match run
	WorkerPoolSize = 4
)

// Cache constants
const (
	// CacheTTLSeconds is how long a memory-tier cache entry stays valid
	CacheTTLSeconds = 3600

	// CacheMaxEntries is the hard cap on memory-tier cache entries
	CacheMaxEntries = 1000

	// CacheEvictBatch is the number of oldest entries evicted on overflow
	CacheEvictBatch = 100

	// CacheJPEGQuality is the JPEG quality for cached thumbnails and resizes
	CacheJPEGQuality = 85

	// ThumbnailSize is the default thumbnail dimension for the gallery
	ThumbnailSize = 256
)

// Handler constants
const (
	// GalleryPageSize is the number of thumbnails per gallery page
	GalleryPageSize = 20

	// DefaultImageSize is the default bounded size for the image endpoint
	DefaultImageSize = 800

	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// EventChannelBuffer is the buffer size for job event channels
	EventChannelBuffer = 100
)

// Remote storage constants
const (
	// DriveMaxDepth is the maximum folder nesting depth for recursive downloads
	DriveMaxDepth = 5

	// DrivePageSize is the page size for Drive folder listings
	DrivePageSize = 1000
)

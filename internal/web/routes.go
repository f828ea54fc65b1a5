package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-finder/internal/cache"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
	"github.com/kozaktomas/face-finder/internal/web/handlers"
	"github.com/kozaktomas/face-finder/internal/web/middleware"
)

func (s *Server) setupRoutes(m *matcher.Matcher, store *results.Store, dc *drive.Client) {
	// Create handlers
	thumbCache := cache.New(s.config.Storage.CacheDir())
	facesHandler := handlers.NewFacesHandler(m, s.refs)
	matchHandler := handlers.NewMatchHandler(m, s.refs, s.jobManager, store)
	galleryHandler := handlers.NewGalleryHandler(thumbCache)
	uploadHandler := handlers.NewUploadHandler(s.config)

	// A nil *drive.Client must stay a nil interface for the 503 checks.
	var uploader results.Uploader
	var lister drive.Lister
	if dc != nil {
		uploader = dc
		lister = dc
	}
	scanHandler := handlers.NewScanHandler(s.config, lister)
	exportHandler := handlers.NewExportHandler(s.config, store, uploader)

	// Health check (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.EnsureSession(s.sessionManager))

		// Candidate discovery
		r.Post("/images/scan", scanHandler.Scan)
		r.Post("/drive/folders", scanHandler.DriveFolder)

		// Gallery and image serving
		r.Post("/gallery", galleryHandler.List)
		r.Get("/image", galleryHandler.Image)

		// Reference face selection
		r.Post("/image/load", facesHandler.LoadImage)
		r.Post("/face/set", facesHandler.SetFace)
		r.Delete("/face", facesHandler.ClearFace)

		// Match runs (long-running operations)
		r.Post("/match", matchHandler.Start)
		r.Get("/match/{jobId}/status", matchHandler.Status)
		r.Get("/match/{jobId}/events", matchHandler.Events)
		r.Delete("/match/{jobId}", matchHandler.Cancel)
		r.Post("/match/rescore", matchHandler.Rescore)
		r.Get("/match/similar", matchHandler.Similar)

		// Results and export
		r.Get("/results", matchHandler.Results)
		r.Post("/export", exportHandler.Folder)
		r.Get("/export/zip", exportHandler.Zip)
		r.Post("/export/drive", exportHandler.Drive)

		// Upload
		r.Post("/upload", uploadHandler.Upload)
	})
}

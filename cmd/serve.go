package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/detector"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
	"github.com/kozaktomas/face-finder/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Finder web server.
The web server provides a browser-based interface for uploading a reference
photo, selecting a face and finding every photo of that person.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to random)")
}

// newDetector builds the face detection client. Without EMBEDDING_URL the
// server still starts; detection endpoints then report 503.
func newDetector(cfg *config.Config) detector.Detector {
	if cfg.Embedding.URL == "" {
		fmt.Println("Warning: EMBEDDING_URL not set, face detection disabled")
		return detector.Unavailable{}
	}
	return detector.NewClient(cfg.Embedding.URL)
}

// newDriveClient builds the optional Google Drive client. A nil return means
// Drive endpoints report 503.
func newDriveClient(ctx context.Context, cfg *config.Config) *drive.Client {
	if cfg.Drive.CredentialsFile == "" {
		fmt.Println("Google Drive integration disabled (no credentials configured)")
		return nil
	}
	dc, err := drive.NewClient(ctx, cfg.Drive.CredentialsFile)
	if err != nil {
		fmt.Printf("Warning: Google Drive client failed to initialize: %v\n", err)
		return nil
	}
	fmt.Println("Google Drive integration enabled")
	return dc
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := results.NewStore(cfg.Storage.OutputDir)
	if err != nil {
		return fmt.Errorf("initializing results store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := matcher.New(newDetector(cfg), matcher.WithWorkers(cfg.Match.Workers))
	dc := newDriveClient(ctx, cfg)

	port, host, sessionSecret := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, sessionSecret, m, store, dc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Finder on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

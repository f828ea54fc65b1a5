package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/imaging"
	"github.com/kozaktomas/face-finder/internal/results"
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder]",
	Short: "List candidate images in a folder",
	Long: `Scan a local folder recursively and list all image files found.
With --drive-folder, download a Google Drive folder into the upload
directory first and list the downloaded images.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("drive-folder", "", "Google Drive folder name to download and scan")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	driveFolder := mustGetString(cmd, "drive-folder")
	asJSON := mustGetBool(cmd, "json")

	var folder string
	switch {
	case driveFolder != "":
		local, err := downloadDriveFolder(cmd.Context(), cfg, driveFolder)
		if err != nil {
			return err
		}
		folder = local
	case len(args) == 1:
		folder = args[0]
	default:
		return errors.New("folder argument or --drive-folder is required")
	}

	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return fmt.Errorf("folder not found: %s", folder)
	}

	paths := imaging.ScanFolder(folder)
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"folder": folder,
			"count":  len(paths),
			"paths":  paths,
		})
	}

	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Printf("\n%d images found in %s\n", len(paths), folder)
	return nil
}

// downloadDriveFolder resolves a Drive folder by name under the configured
// root and downloads it into the upload directory.
func downloadDriveFolder(ctx context.Context, cfg *config.Config, name string) (string, error) {
	if cfg.Drive.CredentialsFile == "" {
		return "", errors.New("DRIVE_SERVICE_ACCOUNT_FILE environment variable is required for Drive access")
	}

	dc, err := drive.NewClient(ctx, cfg.Drive.CredentialsFile)
	if err != nil {
		return "", fmt.Errorf("initializing drive client: %w", err)
	}

	folderID, err := drive.FindFolder(ctx, dc, cfg.Drive.RootFolderID, name)
	if err != nil {
		return "", fmt.Errorf("resolving drive folder %q: %w", name, err)
	}

	localDir := filepath.Join(cfg.Storage.UploadDir, results.SanitizeName(name))
	fmt.Printf("Downloading Drive folder %q to %s...\n", name, localDir)

	paths, err := drive.DownloadFolder(ctx, dc, folderID, localDir)
	if err != nil {
		return "", fmt.Errorf("downloading drive folder: %w", err)
	}
	fmt.Printf("Downloaded %d files\n", len(paths))
	return localDir, nil
}

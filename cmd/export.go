package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/drive"
	"github.com/kozaktomas/face-finder/internal/matcher"
	"github.com/kozaktomas/face-finder/internal/results"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matched images from the last run",
}

var exportFolderCmd = &cobra.Command{
	Use:   "folder [dest]",
	Short: "Copy matched images into a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExportFolder,
}

var exportZipCmd = &cobra.Command{
	Use:   "zip [file]",
	Short: "Pack matched images into a zip archive",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExportZip,
}

var exportDriveCmd = &cobra.Command{
	Use:   "drive [folder-name]",
	Short: "Upload matched images into a new Google Drive folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExportDrive,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportFolderCmd)
	exportCmd.AddCommand(exportZipCmd)
	exportCmd.AddCommand(exportDriveCmd)
}

// loadMatches loads the stored result set and filters it to matched records.
func loadMatches(cfg *config.Config) ([]matcher.MatchRecord, error) {
	store, err := results.NewStore(cfg.Storage.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("initializing results store: %w", err)
	}

	set, err := store.Load()
	if err != nil {
		if errors.Is(err, results.ErrNoResults) {
			return nil, errors.New("no results found, run a match first")
		}
		return nil, fmt.Errorf("loading results: %w", err)
	}

	matches := results.Matches(set)
	if len(matches) == 0 {
		return nil, errors.New("no matched images to export")
	}
	return matches, nil
}

func runExportFolder(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	matches, err := loadMatches(cfg)
	if err != nil {
		return err
	}

	dest := filepath.Join(cfg.Storage.OutputDir, "matched")
	if len(args) == 1 {
		dest = args[0]
	}

	exported, err := results.ExportToFolder(matches, dest)
	if err != nil {
		return fmt.Errorf("exporting to %s: %w", dest, err)
	}

	fmt.Printf("Exported %d images to %s\n", len(exported), dest)
	return nil
}

func runExportZip(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	matches, err := loadMatches(cfg)
	if err != nil {
		return err
	}

	name := filepath.Join(cfg.Storage.OutputDir, fmt.Sprintf("matches-%s.zip", time.Now().Format("2006-01-02")))
	if len(args) == 1 {
		name = args[0]
	}

	f, err := os.Create(name) //nolint:gosec // destination chosen by the operator
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}

	count, err := results.ExportToArchive(matches, f)
	if err != nil {
		f.Close()
		return fmt.Errorf("writing archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}

	fmt.Printf("Packed %d images into %s\n", count, name)
	return nil
}

func runExportDrive(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Drive.CredentialsFile == "" {
		return errors.New("DRIVE_SERVICE_ACCOUNT_FILE environment variable is required for Drive access")
	}

	matches, err := loadMatches(cfg)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("matches-%s", time.Now().Format("2006-01-02"))
	if len(args) == 1 {
		name = results.SanitizeName(args[0])
	}

	ctx := cmd.Context()
	dc, err := drive.NewClient(ctx, cfg.Drive.CredentialsFile)
	if err != nil {
		return fmt.Errorf("initializing drive client: %w", err)
	}

	export, err := results.ExportToRemote(ctx, matches, name, dc)
	if err != nil {
		return fmt.Errorf("exporting to drive: %w", err)
	}

	fmt.Printf("Uploaded %d images to Drive folder %s\n", export.Uploaded, export.FolderID)
	for _, f := range export.Failures {
		fmt.Printf("  failed: %s (%s)\n", f.ImagePath, f.Message)
	}
	return nil
}

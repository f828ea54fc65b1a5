package results

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-finder/internal/matcher"
)

// uniqueName disambiguates a colliding base name by appending _1, _2, ...
// before the extension until taken reports a free name. Resolution is
// deterministic and never reuses a taken name.
func uniqueName(name string, taken func(string) bool) string {
	if !taken(name) {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !taken(candidate) {
			return candidate
		}
	}
}

// ExportToFolder copies each matched image's source file into destDir.
// Name collisions get a numeric suffix; existing files are never overwritten.
// Missing source files are skipped. Returns the exported destination paths.
func ExportToFolder(matches []matcher.MatchRecord, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	var exported []string
	for _, m := range matches {
		if _, err := os.Stat(m.ImagePath); err != nil {
			continue
		}

		name := uniqueName(filepath.Base(m.ImagePath), func(n string) bool {
			_, err := os.Stat(filepath.Join(destDir, n))
			return err == nil
		})
		dst := filepath.Join(destDir, name)

		if err := copyFile(m.ImagePath, dst); err != nil {
			return exported, fmt.Errorf("copying %s: %w", m.ImagePath, err)
		}
		exported = append(exported, dst)
	}
	return exported, nil
}

// ExportToArchive writes a zip archive with one entry per matched image,
// named by base filename. Colliding basenames are disambiguated the same way
// as folder export so no entry silently shadows another.
func ExportToArchive(matches []matcher.MatchRecord, w io.Writer) (int, error) {
	zw := zip.NewWriter(w)
	used := make(map[string]bool)
	count := 0

	for _, m := range matches {
		src, err := os.Open(m.ImagePath) //nolint:gosec // paths come from the stored result set
		if err != nil {
			continue
		}

		name := uniqueName(filepath.Base(m.ImagePath), func(n string) bool { return used[n] })
		used[name] = true

		entry, err := zw.Create(name)
		if err != nil {
			src.Close()
			return count, fmt.Errorf("creating archive entry %s: %w", name, err)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return count, fmt.Errorf("writing archive entry %s: %w", name, err)
		}
		src.Close()
		count++
	}

	if err := zw.Close(); err != nil {
		return count, fmt.Errorf("closing archive: %w", err)
	}
	return count, nil
}

// Uploader is the remote storage capability the export needs: create a
// destination folder and upload files into it.
type Uploader interface {
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, localPath, name, parentID string) (string, error)
}

// UploadError records one failed upload inside an otherwise successful batch.
type UploadError struct {
	ImagePath string `json:"image_path"`
	Message   string `json:"message"`
}

// RemoteExport is the partial result of a remote export: the destination
// folder, how many files made it, and per-file failures.
type RemoteExport struct {
	FolderID string        `json:"folder_id"`
	Uploaded int           `json:"uploaded"`
	Failures []UploadError `json:"failures,omitempty"`
}

// ExportToRemote creates a destination folder and uploads each matched file
// into it. One failed upload does not abort the rest; failures come back in
// the result. Folder creation failure is a hard error.
func ExportToRemote(ctx context.Context, matches []matcher.MatchRecord, folderName string, up Uploader) (*RemoteExport, error) {
	folderID, err := up.CreateFolder(ctx, folderName, "")
	if err != nil {
		return nil, fmt.Errorf("creating remote folder: %w", err)
	}

	result := &RemoteExport{FolderID: folderID}
	for _, m := range matches {
		if _, err := os.Stat(m.ImagePath); err != nil {
			continue
		}
		if _, err := up.UploadFile(ctx, m.ImagePath, filepath.Base(m.ImagePath), folderID); err != nil {
			log.Printf("upload failed for %s: %v", m.ImagePath, err)
			result.Failures = append(result.Failures, UploadError{ImagePath: m.ImagePath, Message: err.Error()})
			continue
		}
		result.Uploaded++
	}
	return result, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // paths come from the stored result set
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // destination inside the export directory
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

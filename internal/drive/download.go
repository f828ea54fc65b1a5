package drive

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-finder/internal/constants"
)

// Lister is the subset of the Drive client the folder download needs.
// Extracted so the traversal can be tested without the real API.
type Lister interface {
	ListChildren(ctx context.Context, folderID string) ([]Item, error)
	Download(ctx context.Context, fileID string, w io.Writer) error
}

type folderWork struct {
	id    string
	local string
	depth int
}

// DownloadFolder downloads every image under a Drive folder, mirroring the
// folder structure below localDir, and returns the local paths.
//
// Traversal uses an explicit worklist with a visited set so shortcut cycles
// terminate; the depth cap is a second safety net. Per-file download failures
// are logged and skipped; a listing failure skips that folder only.
func DownloadFolder(ctx context.Context, c Lister, folderID, localDir string) ([]string, error) {
	visited := map[string]bool{folderID: true}
	queue := []folderWork{{id: folderID, local: localDir, depth: 0}}
	var images []string

	for len(queue) > 0 {
		work := queue[0]
		queue = queue[1:]

		if err := os.MkdirAll(work.local, 0o750); err != nil {
			return images, err
		}

		items, err := c.ListChildren(ctx, work.id)
		if err != nil {
			log.Printf("listing drive folder %s: %v", work.id, err)
			continue
		}

		for _, item := range items {
			switch {
			case item.IsImage():
				path := filepath.Join(work.local, filepath.Base(item.Name))
				if err := downloadTo(ctx, c, item.ID, path); err != nil {
					log.Printf("downloading %s: %v", item.Name, err)
					continue
				}
				images = append(images, path)
			case item.IsFolder():
				if visited[item.ID] || work.depth+1 >= constants.DriveMaxDepth {
					continue
				}
				visited[item.ID] = true
				queue = append(queue, folderWork{
					id:    item.ID,
					local: filepath.Join(work.local, filepath.Base(item.Name)),
					depth: work.depth + 1,
				})
			}
		}
	}
	return images, nil
}

func downloadTo(ctx context.Context, c Lister, fileID, path string) error {
	f, err := os.Create(path) //nolint:gosec // path built from sanitized base names under localDir
	if err != nil {
		return err
	}
	if err := c.Download(ctx, fileID, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

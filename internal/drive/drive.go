// Package drive integrates Google Drive as the remote image storage.
// Authentication lives entirely here; the rest of the application only sees
// local file paths and opaque folder/file IDs.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/kozaktomas/face-finder/internal/constants"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Item is a single child of a Drive folder.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// IsFolder returns true for folder items.
func (it Item) IsFolder() bool { return it.MimeType == folderMimeType }

// IsImage returns true for image items.
func (it Item) IsImage() bool { return strings.HasPrefix(it.MimeType, "image/") }

// Client wraps the Drive v3 API for folder listing, downloads and uploads.
type Client struct {
	svc *drive.Service
}

// NewClient creates a Drive client authenticating with a service account
// credentials file.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	if credentialsFile == "" {
		return nil, fmt.Errorf("drive credentials file not configured")
	}
	key, err := os.ReadFile(credentialsFile) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("drive credentials file: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(key, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// ListChildren returns all non-trashed children of a folder.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]Item, error) {
	var items []Item
	pageToken := ""
	for {
		call := c.svc.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed=false", folderID)).
			Fields("nextPageToken, files(id, name, mimeType)").
			PageSize(constants.DrivePageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing folder %s: %w", folderID, err)
		}
		for _, f := range list.Files {
			items = append(items, Item{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			return items, nil
		}
	}
}

// ErrFolderNotFound means no child folder matched the requested name.
var ErrFolderNotFound = errors.New("drive folder not found")

// FindFolder locates a child folder by name under parentID. The exact name is
// tried first, then a case-insensitive substring match. Returns
// ErrFolderNotFound when nothing matches.
func FindFolder(ctx context.Context, c Lister, parentID, name string) (string, error) {
	items, err := c.ListChildren(ctx, parentID)
	if err != nil {
		return "", err
	}
	for _, it := range items {
		if it.IsFolder() && it.Name == name {
			return it.ID, nil
		}
	}
	lower := strings.ToLower(name)
	for _, it := range items {
		if it.IsFolder() && strings.Contains(strings.ToLower(it.Name), lower) {
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q under %s", ErrFolderNotFound, name, parentID)
}

// Download streams a file's content to w.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) error {
	resp, err := c.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading file %s: %w", fileID, err)
	}
	return nil
}

// CreateFolder creates a folder and returns its ID. An empty parentID creates
// it at the Drive root.
func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{Name: name, MimeType: folderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	folder, err := c.svc.Files.Create(meta).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating folder %s: %w", name, err)
	}
	return folder.Id, nil
}

// UploadFile uploads a local file into the given folder and returns the new
// file's ID.
func (c *Client) UploadFile(ctx context.Context, localPath, name, parentID string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // paths come from the stored result set
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{Name: name}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	created, err := c.svc.Files.Create(meta).Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}
	return created.Id, nil
}

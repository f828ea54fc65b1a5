package results

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-finder/internal/matcher"
)

func writeSourceFile(t *testing.T, dir, name, content string) matcher.MatchRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return matcher.MatchRecord{ImagePath: path, MaxSimilarity: 0.9, FaceCount: 1, IsMatch: true}
}

func TestUniqueName(t *testing.T) {
	taken := map[string]bool{
		"photo.jpg":   true,
		"photo_1.jpg": true,
	}
	isTaken := func(n string) bool { return taken[n] }

	tests := []struct {
		name string
		want string
	}{
		{"free.jpg", "free.jpg"},
		{"photo.jpg", "photo_2.jpg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := uniqueName(tc.name, isTaken); got != tc.want {
				t.Errorf("uniqueName(%q) = %q, want %q", tc.name, got, tc.want)
			}
		})
	}
}

func TestExportToFolder(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")

	matches := []matcher.MatchRecord{
		writeSourceFile(t, src, "a.jpg", "first"),
		writeSourceFile(t, src, "sub/a.jpg", "second"),
		{ImagePath: filepath.Join(src, "missing.jpg"), IsMatch: true},
	}

	exported, err := ExportToFolder(matches, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two files copied, the colliding basename disambiguated, the missing
	// source skipped.
	if len(exported) != 2 {
		t.Fatalf("expected 2 exported files, got %d: %v", len(exported), exported)
	}
	first, err := os.ReadFile(filepath.Join(dest, "a.jpg"))
	if err != nil {
		t.Fatalf("missing a.jpg: %v", err)
	}
	second, err := os.ReadFile(filepath.Join(dest, "a_1.jpg"))
	if err != nil {
		t.Fatalf("missing a_1.jpg: %v", err)
	}
	if string(first) != "first" || string(second) != "second" {
		t.Errorf("contents swapped or corrupted: %q, %q", first, second)
	}
}

func TestExportToFolder_NeverOverwritesExisting(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()

	if err := os.WriteFile(filepath.Join(dest, "a.jpg"), []byte("keep me"), 0o600); err != nil {
		t.Fatalf("failed to seed dest: %v", err)
	}

	matches := []matcher.MatchRecord{writeSourceFile(t, src, "a.jpg", "new")}
	if _, err := ExportToFolder(matches, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kept, err := os.ReadFile(filepath.Join(dest, "a.jpg"))
	if err != nil {
		t.Fatalf("existing file vanished: %v", err)
	}
	if string(kept) != "keep me" {
		t.Errorf("existing file overwritten: %q", kept)
	}
}

func TestExportToArchive(t *testing.T) {
	src := t.TempDir()
	matches := []matcher.MatchRecord{
		writeSourceFile(t, src, "a.jpg", "first"),
		writeSourceFile(t, src, "sub/a.jpg", "second"),
	}

	var buf bytes.Buffer
	count, err := ExportToArchive(matches, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 entries, got %d", count)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("invalid archive: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["a.jpg"] || !names["a_1.jpg"] {
		t.Errorf("expected disambiguated entries, got %v", names)
	}
}

// fakeUploader records uploads and optionally fails selected files.
type fakeUploader struct {
	folderErr error
	failNames map[string]bool
	uploaded  []string
}

func (f *fakeUploader) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if f.folderErr != nil {
		return "", f.folderErr
	}
	return "folder-id", nil
}

func (f *fakeUploader) UploadFile(ctx context.Context, localPath, name, parentID string) (string, error) {
	if f.failNames[name] {
		return "", errors.New("quota exceeded")
	}
	f.uploaded = append(f.uploaded, name)
	return "file-id", nil
}

func TestExportToRemote(t *testing.T) {
	src := t.TempDir()
	matches := []matcher.MatchRecord{
		writeSourceFile(t, src, "a.jpg", "x"),
		writeSourceFile(t, src, "b.jpg", "y"),
	}

	up := &fakeUploader{}
	export, err := ExportToRemote(context.Background(), matches, "holiday", up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if export.FolderID != "folder-id" || export.Uploaded != 2 {
		t.Errorf("unexpected export result: %+v", export)
	}
}

func TestExportToRemote_PartialFailure(t *testing.T) {
	src := t.TempDir()
	matches := []matcher.MatchRecord{
		writeSourceFile(t, src, "a.jpg", "x"),
		writeSourceFile(t, src, "b.jpg", "y"),
	}

	up := &fakeUploader{failNames: map[string]bool{"a.jpg": true}}
	export, err := ExportToRemote(context.Background(), matches, "holiday", up)
	if err != nil {
		t.Fatalf("expected partial success, got error: %v", err)
	}
	if export.Uploaded != 1 || len(export.Failures) != 1 {
		t.Errorf("unexpected export result: %+v", export)
	}
	if export.Failures[0].ImagePath != matches[0].ImagePath {
		t.Errorf("wrong failure recorded: %+v", export.Failures[0])
	}
}

func TestExportToRemote_FolderCreationFails(t *testing.T) {
	up := &fakeUploader{folderErr: errors.New("forbidden")}
	if _, err := ExportToRemote(context.Background(), nil, "holiday", up); err == nil {
		t.Error("expected error when folder creation fails")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "holiday", "holiday"},
		{"diacritics", "Jiří Novák", "Jiri Novak"},
		{"path separators", "a/b\\c:d", "a_b_c_d"},
		{"leading dots", "..hidden", "hidden"},
		{"empty", "", "export"},
		{"whitespace only", "   ", "export"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeName(tc.in); got != tc.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

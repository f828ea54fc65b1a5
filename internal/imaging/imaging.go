// Package imaging provides image loading, bounded resizing and JPEG encoding
// for the face matching pipeline.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// validExtensions are the image file extensions considered candidates.
var validExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImagePath returns true if the path has a supported image extension.
func IsImagePath(path string) bool {
	return validExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads and decodes an image from disk.
// Returns (nil, false) for a missing file or undecodable bytes; callers must
// treat that as an unusable image, not a fatal error.
func Load(path string) (image.Image, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from scanned candidate folders
	if err != nil {
		return nil, false
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	return img, true
}

// ResizeBounded scales an image so the longer side equals maxDim, preserving
// aspect ratio. Images already within maxDim are returned unchanged; there is
// no upscaling.
func ResizeBounded(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxDim && height <= maxDim {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxDim
		newHeight = int(float64(height) * float64(maxDim) / float64(width))
	} else {
		newHeight = maxDim
		newWidth = int(float64(width) * float64(maxDim) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

// EncodeJPEG encodes an image as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Crop returns the portion of img inside the given rectangle, clamped to the
// image bounds. Returns (nil, false) when the clamped region is empty.
func Crop(img image.Image, rect image.Rectangle) (image.Image, bool) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, false
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, true
}

// ScanFolder walks a directory tree and returns the sorted list of image file
// paths found in it. A missing folder yields an empty list, not an error.
func ScanFolder(folder string) []string {
	var images []string
	_ = filepath.WalkDir(folder, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() && IsImagePath(path) {
			images = append(images, path)
		}
		return nil
	})
	sort.Strings(images)
	return images
}

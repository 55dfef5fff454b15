package dataset

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
}

// LoadDir decodes every image file in dir into a grayscale sample. The label is
// the file name without its extension and must be <subject>.<instance>; image
// files named otherwise are skipped with a warning, as are non-image files.
// Files are read in lexical order so the result does not depend on directory
// iteration order.
func LoadDir(dir string) ([]Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	samples := make([]Sample, 0, len(names))
	for _, name := range names {
		label, err := ParseLabel(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			logging.Warnf("Skipping %s: %v", name, err)
			continue
		}
		img, err := LoadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		samples = append(samples, Sample{Image: img, Label: label})
	}

	logging.Component("dataset").WithFields(logging.Fields{
		"dir":     dir,
		"samples": len(samples),
	}).Info("loaded images")

	return samples, nil
}

// LoadImage decodes a square image file into 8-bit gray intensities.
func LoadImage(path string) (eigenface.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return eigenface.Image{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	src, _, err := image.Decode(f)
	if err != nil {
		return eigenface.Image{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	b := src.Bounds()
	if b.Dx() != b.Dy() {
		return eigenface.Image{}, &eigenface.ShapeError{
			Op:  "load",
			Msg: fmt.Sprintf("%s is %dx%d, images must be square", filepath.Base(path), b.Dx(), b.Dy()),
		}
	}

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	side := b.Dx()
	pix := make([]float64, side*side)
	for y := 0; y < side; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+side]
		for x, v := range row {
			pix[y*side+x] = float64(v)
		}
	}
	return eigenface.NewImageFromPix(side, pix)
}

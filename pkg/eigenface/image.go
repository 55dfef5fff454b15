// Package eigenface implements the Eigenfaces dimensionality reduction: flattening
// square face images into row vectors, centring them on the mean face, the
// Gram-matrix eigen-decomposition, component selection rules, and projection /
// reconstruction against the selected basis.
package eigenface

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrShape is matched by every *ShapeError through errors.Is.
var ErrShape = errors.New("shape mismatch")

// ShapeError reports images or matrices whose dimensions cannot be combined.
type ShapeError struct {
	Op  string
	Msg string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Is makes errors.Is(err, ErrShape) true for any ShapeError.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

func shapeErrorf(op, format string, args ...interface{}) *ShapeError {
	return &ShapeError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Image is a square grid of intensities stored row-major. The zero value is an
// empty image; use NewImage or NewImageFromPix to build one.
type Image struct {
	side int
	pix  []float64
}

// NewImage builds an image from rows, which must form a non-empty square.
func NewImage(rows [][]float64) (Image, error) {
	side := len(rows)
	if side == 0 {
		return Image{}, shapeErrorf("new image", "empty image")
	}

	pix := make([]float64, 0, side*side)
	for i, row := range rows {
		if len(row) != side {
			return Image{}, shapeErrorf("new image", "row %d has %d columns, want %d", i, len(row), side)
		}
		pix = append(pix, row...)
	}
	return Image{side: side, pix: pix}, nil
}

// NewImageFromPix builds a side×side image from row-major pixels. The slice is copied.
func NewImageFromPix(side int, pix []float64) (Image, error) {
	if side <= 0 || len(pix) != side*side {
		return Image{}, shapeErrorf("new image", "%d pixels do not form a %dx%d image", len(pix), side, side)
	}
	return Image{side: side, pix: append([]float64(nil), pix...)}, nil
}

// Side returns the image edge length p.
func (im Image) Side() int { return im.side }

// At returns the intensity at row r, column c.
func (im Image) At(r, c int) float64 { return im.pix[r*im.side+c] }

// Pix returns a copy of the row-major pixels.
func (im Image) Pix() []float64 { return append([]float64(nil), im.pix...) }

// Flatten stacks the images as rows of an n×p² matrix.
func Flatten(images []Image) (*mat.Dense, error) {
	if len(images) == 0 {
		return nil, shapeErrorf("flatten", "no images")
	}

	side := images[0].side
	if side == 0 {
		return nil, shapeErrorf("flatten", "image 0 is empty")
	}

	d := side * side
	data := make([]float64, 0, len(images)*d)
	for i, im := range images {
		if im.side != side {
			return nil, shapeErrorf("flatten", "image %d is %dx%d, want %dx%d", i, im.side, im.side, side, side)
		}
		data = append(data, im.pix...)
	}
	return mat.NewDense(len(images), d, data), nil
}

// Center subtracts the column-wise mean from a copy of m and returns the copy
// together with the mean vector (the mean face).
func Center(m *mat.Dense) (*mat.Dense, []float64) {
	n, d := m.Dims()

	mean := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, m)
		mean[j] = stat.Mean(col, nil)
	}

	centered, _ := CenterWith(m, mean)
	return centered, mean
}

// CenterWith subtracts a previously computed mean from a copy of m.
func CenterWith(m *mat.Dense, mean []float64) (*mat.Dense, error) {
	n, d := m.Dims()
	if len(mean) != d {
		return nil, shapeErrorf("center", "mean has length %d, rows have %d", len(mean), d)
	}

	centered := mat.DenseCopyOf(m)
	for i := 0; i < n; i++ {
		floats.Sub(centered.RawRowView(i), mean)
	}
	return centered, nil
}

// ToImages reshapes every row of m back into a square image.
func ToImages(m *mat.Dense) ([]Image, error) {
	n, d := m.Dims()

	side := int(math.Round(math.Sqrt(float64(d))))
	if side*side != d {
		return nil, shapeErrorf("reshape", "row length %d is not a perfect square", d)
	}

	images := make([]Image, n)
	for i := 0; i < n; i++ {
		images[i] = Image{side: side, pix: mat.Row(nil, i, m)}
	}
	return images, nil
}

// Fingerprint hashes the sizes and pixels of images in order.
func Fingerprint(images []Image) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, im := range images {
		binary.LittleEndian.PutUint64(buf[:], uint64(im.side))
		_, _ = d.Write(buf[:])
		for _, v := range im.pix {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
			_, _ = d.Write(buf[:])
		}
	}
	return d.Sum64()
}

package eigenface

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/logging"
)

// Project expresses every row of m in the basis: m·W, an n×k matrix.
func Project(m *mat.Dense, b *Basis) (*mat.Dense, error) {
	_, d := m.Dims()
	if d != b.Dim() {
		return nil, shapeErrorf("project", "rows have %d values, basis vectors have %d", d, b.Dim())
	}

	var reduced mat.Dense
	reduced.Mul(m, b.Vectors)
	return &reduced, nil
}

// Reconstruct maps reduced coordinates back to image space, (W·Rᵗ)ᵗ plus the
// mean face, and reshapes each row into a square image.
func Reconstruct(reduced *mat.Dense, b *Basis, mean []float64) ([]Image, error) {
	_, k := reduced.Dims()
	if k != b.Len() {
		return nil, shapeErrorf("reconstruct", "reduced rows have %d coordinates, basis has %d vectors", k, b.Len())
	}
	if len(mean) != b.Dim() {
		return nil, shapeErrorf("reconstruct", "mean has length %d, basis vectors have %d", len(mean), b.Dim())
	}

	var y mat.Dense
	y.Mul(b.Vectors, reduced.T())

	flat := mat.DenseCopyOf(y.T())
	n, _ := flat.Dims()
	for i := 0; i < n; i++ {
		floats.Add(flat.RawRowView(i), mean)
	}
	return ToImages(flat)
}

// Model is a fitted eigenface space: the retained basis, the gallery mean face
// and the rule that chose the basis. It is read-only once built and safe to
// share between goroutines.
type Model struct {
	Rule  string
	Side  int
	Mean  []float64
	Basis *Basis

	// Params is the String of the rule, parameters included.
	Params string
	// Gallery is the Fingerprint of the images the model was fitted on.
	Gallery uint64
}

// FittedOn reports whether the model was fitted on exactly these images with rule.
func (m *Model) FittedOn(images []Image, rule Rule) bool {
	return m.Params == rule.String() && m.Gallery == Fingerprint(images)
}

// Components returns the dimension k of the reduced space.
func (m *Model) Components() int { return m.Basis.Len() }

// Project flattens images, centres them on the model's mean face and projects them.
func (m *Model) Project(images []Image) (*mat.Dense, error) {
	flat, err := Flatten(images)
	if err != nil {
		return nil, err
	}
	centered, err := CenterWith(flat, m.Mean)
	if err != nil {
		return nil, err
	}
	return Project(centered, m.Basis)
}

// ProjectOne projects a single image and returns its k coordinates.
func (m *Model) ProjectOne(img Image) ([]float64, error) {
	reduced, err := m.Project([]Image{img})
	if err != nil {
		return nil, err
	}
	return reduced.RawRowView(0), nil
}

// Reconstruct maps reduced coordinates back to images using the model's mean face.
func (m *Model) Reconstruct(reduced *mat.Dense) ([]Image, error) {
	return Reconstruct(reduced, m.Basis, m.Mean)
}

// Reduce fits an eigenface model on the gallery images and returns the gallery
// projected onto it: flatten, center, decompose, select, project.
func Reduce(images []Image, rule Rule) (*mat.Dense, *Model, error) {
	if err := validateRule(rule); err != nil {
		return nil, nil, err
	}

	flat, err := Flatten(images)
	if err != nil {
		return nil, nil, err
	}

	centered, mean := Center(flat)

	spectrum, err := Decompose(centered)
	if err != nil {
		return nil, nil, err
	}

	basis, err := SelectComponents(spectrum, rule)
	if err != nil {
		return nil, nil, err
	}

	reduced, err := Project(centered, basis)
	if err != nil {
		return nil, nil, err
	}

	n, d := flat.Dims()
	logging.Component("eigenface").WithFields(logging.Fields{
		"rule":       rule.Name(),
		"samples":    n,
		"dimensions": d,
		"spectrum":   spectrum.Len(),
		"components": basis.Len(),
	}).Debug("reduced gallery")

	return reduced, &Model{
		Rule:    rule.Name(),
		Side:    images[0].Side(),
		Mean:    mean,
		Basis:   basis,
		Params:  rule.String(),
		Gallery: Fingerprint(images),
	}, nil
}

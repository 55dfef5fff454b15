package eigenface

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInsufficientSamples is returned when fewer than two samples are decomposed.
var ErrInsufficientSamples = errors.New("at least two samples are required")

// ErrDecomposition is returned when the symmetric eigen solver does not converge.
var ErrDecomposition = errors.New("eigen decomposition failed")

// relative norm below which a recovered eigenvector is treated as a null direction
const nullNormRatio = 1e-6

// Spectrum holds eigenvalues sorted in descending order and the matching unit
// eigenvectors stored as the columns of a d×m matrix.
type Spectrum struct {
	Values  []float64
	Vectors *mat.Dense
}

// Len returns the number of eigenpairs.
func (s *Spectrum) Len() int { return len(s.Values) }

// Decompose computes the principal axes of the centred n×d matrix D without
// forming the d×d covariance matrix.
//
// The n×n matrix G = D·Dᵗ/(d−1) is decomposed with a symmetric solver. Each
// eigenvector v of G maps to a covariance eigenvector w = Dᵗ·v, and the
// eigenvalue is rescaled by (d−1)/(n−1) so that it equals the corresponding
// eigenvalue of the covariance DᵗD/(n−1). Centring costs one degree of freedom,
// so at most min(n−1, d) pairs are returned; null directions are dropped.
func Decompose(centered *mat.Dense) (*Spectrum, error) {
	n, d := centered.Dims()
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientSamples, n)
	}
	if d < 2 {
		return nil, shapeErrorf("decompose", "need at least two dimensions, got %d", d)
	}

	var gram mat.SymDense
	gram.SymOuterK(1/float64(d-1), centered)

	var eig mat.EigenSym
	if ok := eig.Factorize(&gram, true); !ok {
		return nil, ErrDecomposition
	}

	values := eig.Values(nil)
	var v mat.Dense
	eig.VectorsTo(&v)

	// EigenSym returns ascending values; a stable sort keeps ties in solver order
	// for both the value and its vector.
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	var w mat.Dense
	w.Mul(centered.T(), &v)

	norms := make([]float64, n)
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = mat.Col(nil, j, &w)
		norms[j] = floats.Norm(cols[j], 2)
	}
	maxNorm := floats.Max(norms)

	limit := min(n-1, d)
	scale := float64(d-1) / float64(n-1)

	kept := make([]int, 0, limit)
	for _, idx := range order {
		if len(kept) == limit {
			break
		}
		if maxNorm == 0 || norms[idx] <= nullNormRatio*maxNorm {
			continue
		}
		kept = append(kept, idx)
	}

	spectrum := &Spectrum{Values: make([]float64, len(kept))}
	if len(kept) == 0 {
		return spectrum, nil
	}

	spectrum.Vectors = mat.NewDense(d, len(kept), nil)
	for j, idx := range kept {
		col := cols[idx]
		floats.Scale(1/norms[idx], col)
		spectrum.Vectors.SetCol(j, col)
		spectrum.Values[j] = values[idx] * scale
	}
	return spectrum, nil
}

// InertiaShares returns each eigenvalue as a percentage of the total inertia,
// the series plotted by a scree (elbow) chart.
func InertiaShares(values []float64) []float64 {
	shares := make([]float64, len(values))
	total := floats.Sum(values)
	if total == 0 {
		return shares
	}
	for i, v := range values {
		shares[i] = v / total * 100
	}
	return shares
}

// Package search implements brute-force radius search over a reduced gallery.
//
// The radius is a threshold on the squared Euclidean distance: a gallery row is
// a neighbour of the query when Σ(gᵢ − qᵢ)² ≤ radius. Callers who think in plain
// Euclidean distance must pass its square.
package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch indicates queries whose length differs from the gallery rows.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Check verifies that gallery rows and query rows have the same dimension.
func Check(gallery, queries mat.Matrix) error {
	_, gc := gallery.Dims()
	_, qc := queries.Dims()
	if gc != qc {
		return &ErrDimensionMismatch{Expected: gc, Actual: qc}
	}
	return nil
}

// SquaredDistances returns the squared Euclidean distance from query to every gallery row.
func SquaredDistances(gallery *mat.Dense, query []float64) []float64 {
	n, _ := gallery.Dims()
	distances := make([]float64, n)
	diff := make([]float64, len(query))
	for i := 0; i < n; i++ {
		floats.SubTo(diff, gallery.RawRowView(i), query)
		distances[i] = floats.Dot(diff, diff)
	}
	return distances
}

// RadiusNeighbors returns, in ascending order, the indices of the gallery rows
// whose squared distance to query is at most radius.
func RadiusNeighbors(gallery *mat.Dense, query []float64, radius float64) []int {
	indices := []int{}
	for i, dist := range SquaredDistances(gallery, query) {
		if dist <= radius {
			indices = append(indices, i)
		}
	}
	return indices
}

// BatchRadiusNeighbors runs RadiusNeighbors for every row of queries. The
// result has one entry per query, in query order.
func BatchRadiusNeighbors(gallery, queries *mat.Dense, radius float64) [][]int {
	n, _ := queries.Dims()
	results := make([][]int, n)
	for i := 0; i < n; i++ {
		results[i] = RadiusNeighbors(gallery, queries.RawRowView(i), radius)
	}
	return results
}

// ParallelBatchRadiusNeighbors is BatchRadiusNeighbors spread over at most
// workers goroutines. Its output is identical to the sequential form. The
// gallery and queries are only read.
func ParallelBatchRadiusNeighbors(ctx context.Context, gallery, queries *mat.Dense, radius float64, workers int) ([][]int, error) {
	if workers <= 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return BatchRadiusNeighbors(gallery, queries, radius), nil
	}

	n, _ := queries.Dims()
	results := make([][]int, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = RadiusNeighbors(gallery, queries.RawRowView(i), radius)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Authorize reports whether any gallery row lies within radius of query.
func Authorize(gallery *mat.Dense, query []float64, radius float64) bool {
	n, _ := gallery.Dims()
	diff := make([]float64, len(query))
	for i := 0; i < n; i++ {
		floats.SubTo(diff, gallery.RawRowView(i), query)
		if floats.Dot(diff, diff) <= radius {
			return true
		}
	}
	return false
}

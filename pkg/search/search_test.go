package search

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func randomMatrix(rows, cols int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.NormFloat64() * 10
	}
	return mat.NewDense(rows, cols, data)
}

func TestSquaredDistances(t *testing.T) {
	gallery := mat.NewDense(3, 2, []float64{
		0, 0,
		3, 4,
		-1, 1,
	})

	got := SquaredDistances(gallery, []float64{0, 0})
	assert.Equal(t, []float64{0, 25, 2}, got)

	got = SquaredDistances(gallery, []float64{3, 4})
	assert.Equal(t, []float64{25, 0, 25}, got)
}

func TestRadiusNeighbors(t *testing.T) {
	gallery := mat.NewDense(2, 2, []float64{0, 0, 3, 4})

	tests := []struct {
		name   string
		radius float64
		want   []int
	}{
		{"boundary is inclusive", 25, []int{0, 1}},
		{"only the exact match", 24.999, []int{0}},
		{"zero radius keeps distance zero", 0, []int{0}},
		{"negative radius finds nothing", -1, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RadiusNeighbors(gallery, []float64{0, 0}, tt.radius))
		})
	}
}

func TestRadiusNeighbors_RadiusIsSquared(t *testing.T) {
	gallery := mat.NewDense(1, 2, []float64{3, 4})

	// Euclidean distance 5 is outside radius 5 once squared (25 > 5).
	assert.Empty(t, RadiusNeighbors(gallery, []float64{0, 0}, 5))
	assert.Equal(t, []int{0}, RadiusNeighbors(gallery, []float64{0, 0}, 5*5))
}

func TestBatchRadiusNeighbors_PreservesOrder(t *testing.T) {
	gallery := mat.NewDense(3, 1, []float64{0, 10, 20})
	queries := mat.NewDense(3, 1, []float64{20, 0, 100})

	got := BatchRadiusNeighbors(gallery, queries, 1)
	assert.Equal(t, [][]int{{2}, {0}, {}}, got)
}

func TestParallelBatchRadiusNeighbors_MatchesSequential(t *testing.T) {
	gallery := randomMatrix(200, 8, 1)
	queries := randomMatrix(64, 8, 2)
	const radius = 1200.0

	want := BatchRadiusNeighbors(gallery, queries, radius)

	for _, workers := range []int{0, 1, 3, 16} {
		got, err := ParallelBatchRadiusNeighbors(context.Background(), gallery, queries, radius, workers)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestParallelBatchRadiusNeighbors_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		_, err := ParallelBatchRadiusNeighbors(ctx, randomMatrix(10, 2, 1), randomMatrix(10, 2, 2), 1, workers)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}

func TestAuthorize(t *testing.T) {
	gallery := mat.NewDense(2, 2, []float64{0, 0, 3, 4})

	assert.True(t, Authorize(gallery, []float64{3, 4}, 0))
	assert.True(t, Authorize(gallery, []float64{6, 8}, 25))
	assert.False(t, Authorize(gallery, []float64{6, 8}, 24))

	for _, radius := range []float64{0, 1, 24, 25, 100} {
		q := []float64{6, 8}
		assert.Equal(t, len(RadiusNeighbors(gallery, q, radius)) > 0, Authorize(gallery, q, radius), "radius=%v", radius)
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(mat.NewDense(2, 3, nil), mat.NewDense(5, 3, nil)))

	err := Check(mat.NewDense(2, 3, nil), mat.NewDense(1, 4, nil))
	var dm *ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 4, dm.Actual)
}

func TestRadiusNeighbors_Monotonic(t *testing.T) {
	gallery := randomMatrix(100, 4, 9)
	query := []float64{1, -2, 3, 0}

	prev := 0
	for radius := 0.0; radius < 2000; radius += 100 {
		n := len(RadiusNeighbors(gallery, query, radius))
		assert.GreaterOrEqual(t, n, prev, "radius=%v", radius)
		prev = n
	}
}

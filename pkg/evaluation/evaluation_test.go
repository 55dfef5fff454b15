package evaluation

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
)

// lineInputs places every sample on a line so squared distances are easy to read off.
func lineInputs() Inputs {
	return Inputs{
		Gallery:       mat.NewDense(3, 1, []float64{0, 10, 20}),
		GalleryLabels: []dataset.Label{"1.1", "2.1", "3.1"},
		Known:         mat.NewDense(2, 1, []float64{1, 12}),
		KnownLabels:   []dataset.Label{"1.2", "3.2"},
		Unknown:       mat.NewDense(2, 1, []float64{100, 5}),
		UnknownLabels: []dataset.Label{"9.1", "8.1"},
	}
}

func TestTally_SingleOutcomes(t *testing.T) {
	gallery := []dataset.Label{"1.1", "2.1"}

	tests := []struct {
		name    string
		known   []dataset.Label
		unknown []dataset.Label
		kSets   [][]int
		uSets   [][]int
		want    ConfusionCounts
	}{
		{"known with match", []dataset.Label{"1.2"}, nil, [][]int{{1, 0}}, nil, ConfusionCounts{TP: 1}},
		{"known without neighbours", []dataset.Label{"1.2"}, nil, [][]int{{}}, nil, ConfusionCounts{FN: 1}},
		{"known matching someone else", []dataset.Label{"1.2"}, nil, [][]int{{1}}, nil, ConfusionCounts{FP: 1}},
		{"unknown with a neighbour", nil, []dataset.Label{"7.1"}, nil, [][]int{{0}}, ConfusionCounts{FP: 1}},
		{"unknown without neighbours", nil, []dataset.Label{"7.1"}, nil, [][]int{{}}, ConfusionCounts{TN: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tally(gallery, tt.known, tt.unknown, tt.kSets, tt.uSets)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetrics_Balanced(t *testing.T) {
	c := ConfusionCounts{TP: 1, TN: 1, FP: 1, FN: 1}
	assert.Equal(t, 4, c.Total())
	assert.Equal(t, 0.5, c.Accuracy())
	assert.Equal(t, 0.5, c.Precision())
	assert.Equal(t, 0.5, c.Recall())
	assert.Equal(t, 0.5, c.Specificity())
}

func TestMetrics_DegenerateDenominators(t *testing.T) {
	var c ConfusionCounts
	assert.Zero(t, c.Accuracy())
	assert.Zero(t, c.Precision())
	assert.Zero(t, c.Recall())
	assert.Zero(t, c.Specificity())

	onlyNegatives := ConfusionCounts{TN: 3}
	assert.Equal(t, 1.0, onlyNegatives.Accuracy())
	assert.Zero(t, onlyNegatives.Precision())
	assert.Equal(t, 1.0, onlyNegatives.Specificity())
}

func TestEvaluate(t *testing.T) {
	in := lineInputs()

	tests := []struct {
		radius float64
		want   ConfusionCounts
	}{
		{0, ConfusionCounts{FN: 2, TN: 2}},
		{1, ConfusionCounts{TP: 1, FN: 1, TN: 2}},
		{4, ConfusionCounts{TP: 1, FP: 1, TN: 2}},
		{25, ConfusionCounts{TP: 1, FP: 2, TN: 1}},
		{64, ConfusionCounts{TP: 2, FP: 1, TN: 1}},
	}

	for _, tt := range tests {
		rec, err := Evaluate(context.Background(), in, tt.radius, 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, rec.Counts, "radius %v", tt.radius)
		assert.Equal(t, tt.radius, rec.Radius)
		assert.GreaterOrEqual(t, rec.SearchTime, time.Duration(0))
	}
}

func TestEvaluate_RejectsMismatchedLabels(t *testing.T) {
	in := lineInputs()
	in.KnownLabels = in.KnownLabels[:1]

	_, err := Evaluate(context.Background(), in, 25, 1)
	assert.ErrorIs(t, err, ErrInputMismatch)

	in = lineInputs()
	in.Known = mat.NewDense(2, 2, nil)
	_, err = Evaluate(context.Background(), in, 25, 1)
	assert.ErrorIs(t, err, ErrInputMismatch)
}

func TestEvaluate_NoProbes(t *testing.T) {
	in := lineInputs()
	in.Known, in.KnownLabels = nil, nil

	rec, err := Evaluate(context.Background(), in, 25, 2)
	require.NoError(t, err)
	assert.Equal(t, ConfusionCounts{FP: 1, TN: 1}, rec.Counts)
	assert.Zero(t, rec.Recall)
}

func TestSweep_Radii(t *testing.T) {
	radii, err := SweepOptions{Start: 0, Max: 4, Step: 1}.Radii()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, radii)

	radii, err = SweepOptions{Start: 5, Max: 5, Step: 1}.Radii()
	require.NoError(t, err)
	assert.Empty(t, radii)

	_, err = SweepOptions{Start: 0, Max: 4, Step: 0}.Radii()
	assert.ErrorIs(t, err, ErrInvalidSweep)

	_, err = SweepOptions{Start: 4, Max: 0, Step: 1}.Radii()
	assert.ErrorIs(t, err, ErrInvalidSweep)
}

func TestSweep_Monotonic(t *testing.T) {
	// each known probe is closer to its own subject than to anyone else
	in := Inputs{
		Gallery:       mat.NewDense(4, 2, []float64{0, 0, 10, 0, 0, 10, 10, 10}),
		GalleryLabels: []dataset.Label{"1.1", "2.1", "3.1", "4.1"},
		Known:         mat.NewDense(3, 2, []float64{1, 0, 10, 2, 3, 10}),
		KnownLabels:   []dataset.Label{"1.2", "2.2", "3.2"},
		Unknown:       mat.NewDense(3, 2, []float64{5, 5, 20, 20, -8, 0}),
		UnknownLabels: []dataset.Label{"5.1", "6.1", "7.1"},
	}

	var progress []int
	records, err := Sweep(context.Background(), in, SweepOptions{
		Start:    0,
		Max:      300,
		Step:     5,
		Workers:  2,
		Progress: func(done, total int) { progress = append(progress, done) },
	})
	require.NoError(t, err)
	require.Len(t, records, 60)
	assert.Len(t, progress, 60)
	assert.Equal(t, 60, progress[len(progress)-1])

	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Radius, records[i-1].Radius)
		assert.GreaterOrEqual(t, records[i].Recall, records[i-1].Recall, "recall at radius %v", records[i].Radius)
		assert.LessOrEqual(t, records[i].Specificity, records[i-1].Specificity, "specificity at radius %v", records[i].Radius)
	}
	assert.Equal(t, 1.0, records[0].Specificity)
	assert.Equal(t, 1.0, records[len(records)-1].Recall)
}

func TestSweep_InvalidInputs(t *testing.T) {
	in := lineInputs()
	in.KnownLabels = in.KnownLabels[:1]
	_, err := Sweep(context.Background(), in, SweepOptions{Max: 10, Step: 1})
	assert.ErrorIs(t, err, ErrInputMismatch)

	in = lineInputs()
	in.Unknown = mat.NewDense(2, 2, nil)
	_, err = Sweep(context.Background(), in, SweepOptions{Max: 10, Step: 1})
	assert.ErrorIs(t, err, ErrInputMismatch)

	_, err = Sweep(context.Background(), Inputs{}, SweepOptions{Max: 10, Step: 1})
	assert.ErrorIs(t, err, ErrInputMismatch)
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sweep(ctx, lineInputs(), SweepOptions{Max: 10, Step: 1, Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpeedup(t *testing.T) {
	baseline := []MetricRecord{
		{Radius: 0, SearchTime: 400 * time.Millisecond},
		{Radius: 1, SearchTime: 300 * time.Millisecond},
		{Radius: 2, SearchTime: 100 * time.Millisecond},
	}
	reduced := []MetricRecord{
		{Radius: 0, SearchTime: 100 * time.Millisecond},
		{Radius: 1, SearchTime: 150 * time.Millisecond},
		{Radius: 2, SearchTime: 0},
	}

	got, err := Speedup(baseline, reduced)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 2, 0}, got, 1e-12)

	_, err = Speedup(baseline, reduced[:2])
	assert.ErrorIs(t, err, ErrMisalignedRuns)

	shifted := append([]MetricRecord(nil), reduced...)
	shifted[1].Radius = 5
	_, err = Speedup(baseline, shifted)
	assert.ErrorIs(t, err, ErrMisalignedRuns)
}

func TestROCAndBest(t *testing.T) {
	records := []MetricRecord{
		{Radius: 0, Accuracy: 0.5, Recall: 0, Specificity: 1},
		{Radius: 1, Accuracy: 0.8, Recall: 0.6, Specificity: 0.9},
		{Radius: 2, Accuracy: 0.8, Recall: 0.9, Specificity: 0.5},
	}

	points := ROC(records)
	require.Len(t, points, 3)
	assert.Equal(t, 0.0, points[0].FalsePositiveRate)
	assert.InDelta(t, 0.1, points[1].FalsePositiveRate, 1e-12)
	assert.Equal(t, 0.9, points[2].TruePositiveRate)

	best, ok := Best(records)
	require.True(t, ok)
	assert.Equal(t, 1.0, best.Radius)

	_, ok = Best(nil)
	assert.False(t, ok)
}

func TestWriteCSV(t *testing.T) {
	records := []MetricRecord{
		NewMetricRecord(2.5, ConfusionCounts{TP: 1, TN: 1, FP: 1, FN: 1}, 1500*time.Millisecond),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, metricHeader, rows[0])
	assert.Equal(t, []string{"2.5", "0.5", "0.5", "0.5", "0.5", "1", "1", "1", "1", "1.5"}, rows[1])
}

func TestWriteSpeedupCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSpeedupCSV(&buf, []float64{0, 1}, []string{"kaiser", "scree"}, [][]float64{{2, 3}, {4, 5}})
	require.NoError(t, err)
	assert.Equal(t, "radius,kaiser,scree\n0,2,4\n1,3,5\n", buf.String())

	err = WriteSpeedupCSV(&buf, []float64{0, 1}, []string{"kaiser"}, [][]float64{{2}})
	assert.ErrorIs(t, err, ErrMisalignedRuns)
}

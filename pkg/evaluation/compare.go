package evaluation

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMisalignedRuns is returned when two runs did not sweep the same radii.
var ErrMisalignedRuns = errors.New("runs are not aligned on radius")

// Speedup returns, per radius, the baseline search time divided by the other
// run's search time. A record whose search took no measurable time yields 0.
func Speedup(baseline, other []MetricRecord) ([]float64, error) {
	if len(baseline) != len(other) {
		return nil, fmt.Errorf("%w: %d and %d records", ErrMisalignedRuns, len(baseline), len(other))
	}

	out := make([]float64, len(baseline))
	for i := range baseline {
		if baseline[i].Radius != other[i].Radius {
			return nil, fmt.Errorf("%w: record %d has radius %v and %v", ErrMisalignedRuns, i, baseline[i].Radius, other[i].Radius)
		}
		if other[i].SearchTime <= 0 {
			continue
		}
		out[i] = float64(baseline[i].SearchTime) / float64(other[i].SearchTime)
	}
	return out, nil
}

// ROCPoint is one operating point of the authorizer.
type ROCPoint struct {
	Radius            float64 `json:"radius"`
	FalsePositiveRate float64 `json:"fpr"`
	TruePositiveRate  float64 `json:"tpr"`
}

// ROC maps records to (1-specificity, recall) points ordered by false positive rate.
func ROC(records []MetricRecord) []ROCPoint {
	points := make([]ROCPoint, len(records))
	for i, r := range records {
		points[i] = ROCPoint{
			Radius:            r.Radius,
			FalsePositiveRate: 1 - r.Specificity,
			TruePositiveRate:  r.Recall,
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].FalsePositiveRate < points[j].FalsePositiveRate
	})
	return points
}

// Best returns the record with the highest accuracy, preferring the smallest
// radius on ties. ok is false for an empty slice.
func Best(records []MetricRecord) (best MetricRecord, ok bool) {
	for i, r := range records {
		if i == 0 || r.Accuracy > best.Accuracy {
			best = r
			ok = true
		}
	}
	return best, ok
}

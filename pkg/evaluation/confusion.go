// Package evaluation scores radius-search authorization against ground truth:
// confusion counts, the derived binary-classification metrics, timed radius
// sweeps, and speed comparisons between runs.
package evaluation

import (
	"github.com/MrCodeEU/eigenauth/pkg/dataset"
)

// ConfusionCounts tallies one pass over the known and unknown probes.
type ConfusionCounts struct {
	TP int `json:"tp"`
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Tally classifies every probe from its neighbour set.
//
// A known probe with no neighbour is a false negative; one with a neighbour of
// its own subject is a true positive; one whose neighbours are all other people
// is a false positive. An unknown probe is a true negative when it has no
// neighbour and a false positive otherwise. Labels of unknown probes never
// affect the outcome.
func Tally(galleryLabels, knownLabels, unknownLabels []dataset.Label, knownSets, unknownSets [][]int) ConfusionCounts {
	var c ConfusionCounts

	for i, neighbors := range knownSets {
		if len(neighbors) == 0 {
			c.FN++
			continue
		}
		if hasSubject(galleryLabels, neighbors, knownLabels[i]) {
			c.TP++
		} else {
			c.FP++
		}
	}

	for _, neighbors := range unknownSets {
		if len(neighbors) == 0 {
			c.TN++
		} else {
			c.FP++
		}
	}
	return c
}

func hasSubject(galleryLabels []dataset.Label, neighbors []int, probe dataset.Label) bool {
	for _, idx := range neighbors {
		if galleryLabels[idx].SameSubject(probe) {
			return true
		}
	}
	return false
}

// Total returns the number of classified probes.
func (c ConfusionCounts) Total() int { return c.TP + c.TN + c.FP + c.FN }

// Accuracy is (TP+TN)/total, or 0 without probes.
func (c ConfusionCounts) Accuracy() float64 { return ratio(c.TP+c.TN, c.Total()) }

// Precision is TP/(TP+FP), or 0 when nothing was authorized.
func (c ConfusionCounts) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// Recall is TP/(TP+FN), or 0 without known probes.
func (c ConfusionCounts) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// Specificity is TN/(TN+FP), or 0 when nothing should have been rejected.
func (c ConfusionCounts) Specificity() float64 { return ratio(c.TN, c.TN+c.FP) }

// ratio returns 0 for an empty denominator.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

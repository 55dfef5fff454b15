package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
	"github.com/MrCodeEU/eigenauth/pkg/search"
)

// ErrInvalidSweep is returned for a non-positive step or an inverted range.
var ErrInvalidSweep = errors.New("invalid radius sweep")

// ErrInputMismatch is returned when matrices and label slices disagree.
var ErrInputMismatch = errors.New("evaluation inputs do not match")

// MetricRecord is the outcome of one full probe pass at a fixed radius.
type MetricRecord struct {
	Radius      float64         `json:"radius"`
	Accuracy    float64         `json:"accuracy"`
	Precision   float64         `json:"precision"`
	Recall      float64         `json:"recall"`
	Specificity float64         `json:"specificity"`
	SearchTime  time.Duration   `json:"search_time"`
	Counts      ConfusionCounts `json:"counts"`
}

// NewMetricRecord derives the metrics from counts.
func NewMetricRecord(radius float64, counts ConfusionCounts, searchTime time.Duration) MetricRecord {
	return MetricRecord{
		Radius:      radius,
		Accuracy:    counts.Accuracy(),
		Precision:   counts.Precision(),
		Recall:      counts.Recall(),
		Specificity: counts.Specificity(),
		SearchTime:  searchTime,
		Counts:      counts,
	}
}

// Inputs are the reduced gallery and probes with their ground-truth labels.
// Known or Unknown may be nil when there are no probes of that kind.
type Inputs struct {
	Gallery       *mat.Dense
	GalleryLabels []dataset.Label
	Known         *mat.Dense
	KnownLabels   []dataset.Label
	Unknown       *mat.Dense
	UnknownLabels []dataset.Label
}

// Validate checks row counts against labels and column counts against the gallery.
func (in Inputs) Validate() error {
	if in.Gallery == nil {
		return fmt.Errorf("%w: no gallery", ErrInputMismatch)
	}
	if err := checkRows("gallery", in.Gallery, in.GalleryLabels); err != nil {
		return err
	}
	for _, probes := range []struct {
		name   string
		m      *mat.Dense
		labels []dataset.Label
	}{
		{"known", in.Known, in.KnownLabels},
		{"unknown", in.Unknown, in.UnknownLabels},
	} {
		if probes.m == nil {
			if len(probes.labels) != 0 {
				return fmt.Errorf("%w: %d %s labels without probes", ErrInputMismatch, len(probes.labels), probes.name)
			}
			continue
		}
		if err := checkRows(probes.name, probes.m, probes.labels); err != nil {
			return err
		}
		if err := search.Check(in.Gallery, probes.m); err != nil {
			return fmt.Errorf("%w: %s probes: %w", ErrInputMismatch, probes.name, err)
		}
	}
	return nil
}

func checkRows(name string, m *mat.Dense, labels []dataset.Label) error {
	if r, _ := m.Dims(); r != len(labels) {
		return fmt.Errorf("%w: %s has %d rows and %d labels", ErrInputMismatch, name, r, len(labels))
	}
	return nil
}

// SweepOptions describes the radii [Start, Max) visited in increments of Step.
type SweepOptions struct {
	Start   float64
	Max     float64
	Step    float64
	Workers int

	// Progress, when set, is called after each radius with the number done.
	Progress func(done, total int)
}

// Radii lists the radii of the sweep in increasing order.
func (o SweepOptions) Radii() ([]float64, error) {
	if o.Step <= 0 || math.IsNaN(o.Step) || math.IsInf(o.Step, 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %v", ErrInvalidSweep, o.Step)
	}
	if o.Max < o.Start {
		return nil, fmt.Errorf("%w: max %v below start %v", ErrInvalidSweep, o.Max, o.Start)
	}

	var radii []float64
	for i := 0; ; i++ {
		r := o.Start + float64(i)*o.Step
		if r >= o.Max {
			break
		}
		radii = append(radii, r)
	}
	return radii, nil
}

// Evaluate validates in, then runs one timed search of every probe at radius
// and scores it. Only the search calls are timed.
func Evaluate(ctx context.Context, in Inputs, radius float64, workers int) (MetricRecord, error) {
	if err := in.Validate(); err != nil {
		return MetricRecord{}, err
	}
	return evaluate(ctx, in, radius, workers)
}

// evaluate assumes validated inputs.
func evaluate(ctx context.Context, in Inputs, radius float64, workers int) (MetricRecord, error) {
	start := time.Now()
	knownSets, err := searchProbes(ctx, in.Gallery, in.Known, radius, workers)
	if err != nil {
		return MetricRecord{}, err
	}
	unknownSets, err := searchProbes(ctx, in.Gallery, in.Unknown, radius, workers)
	if err != nil {
		return MetricRecord{}, err
	}
	elapsed := time.Since(start)

	counts := Tally(in.GalleryLabels, in.KnownLabels, in.UnknownLabels, knownSets, unknownSets)
	return NewMetricRecord(radius, counts, elapsed), nil
}

func searchProbes(ctx context.Context, gallery, probes *mat.Dense, radius float64, workers int) ([][]int, error) {
	if probes == nil {
		return nil, nil
	}
	return search.ParallelBatchRadiusNeighbors(ctx, gallery, probes, radius, workers)
}

// Sweep evaluates every radius of opts and returns the records ordered by radius.
func Sweep(ctx context.Context, in Inputs, opts SweepOptions) ([]MetricRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	radii, err := opts.Radii()
	if err != nil {
		return nil, err
	}

	log := logging.Component("evaluation")
	records := make([]MetricRecord, 0, len(radii))
	for i, r := range radii {
		record, err := evaluate(ctx, in, r, opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("sweep stopped at radius %v: %w", r, err)
		}
		records = append(records, record)

		log.WithFields(logging.Fields{
			"radius":      r,
			"accuracy":    record.Accuracy,
			"recall":      record.Recall,
			"specificity": record.Specificity,
			"search_time": record.SearchTime,
		}).Debug("evaluated radius")

		if opts.Progress != nil {
			opts.Progress(i+1, len(radii))
		}
	}
	return records, nil
}

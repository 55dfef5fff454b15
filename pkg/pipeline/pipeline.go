// Package pipeline runs authorization experiments end to end: it reduces a
// partition's gallery with one method, projects the probes into the same
// space, sweeps the search radius and compares methods by search speed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/evaluation"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
)

// BruteForceName names the method that searches centred raw pixels.
const BruteForceName = "brute-force"

// Method is either brute force (Rule is nil) or PCA with a selection rule.
type Method struct {
	Name string
	Rule eigenface.Rule
}

// BruteForce returns the method that skips dimensionality reduction.
func BruteForce() Method { return Method{Name: BruteForceName} }

// ParseMethod resolves brute-force or a rule name with the given rule parameters.
func ParseMethod(name string, inertiaThreshold float64, screeCount int) (Method, error) {
	if name == BruteForceName {
		return BruteForce(), nil
	}
	rule, err := eigenface.NewRule(name, inertiaThreshold, screeCount)
	if err != nil {
		return Method{}, err
	}
	return Method{Name: rule.Name(), Rule: rule}, nil
}

// IsBruteForce reports whether m searches raw pixels.
func (m Method) IsBruteForce() bool { return m.Rule == nil }

func (m Method) String() string { return m.Name }

// Prepared is a partition expressed in one method's search space.
type Prepared struct {
	Method     Method
	Model      *eigenface.Model
	Inputs     evaluation.Inputs
	Components int
	ReduceTime time.Duration
}

// Prepare reduces the gallery and projects both probe sets. Probes are centred
// with the gallery mean so they land in the gallery's space.
func Prepare(p *dataset.Partition, m Method) (*Prepared, error) {
	if len(p.Gallery) == 0 {
		return nil, fmt.Errorf("%w: empty gallery", dataset.ErrEmptyPartition)
	}

	start := time.Now()
	var (
		gallery *mat.Dense
		model   *eigenface.Model
		project func([]eigenface.Image) (*mat.Dense, error)
	)

	if m.IsBruteForce() {
		flat, err := eigenface.Flatten(dataset.Images(p.Gallery))
		if err != nil {
			return nil, fmt.Errorf("failed to flatten gallery: %w", err)
		}
		var mean []float64
		gallery, mean = eigenface.Center(flat)
		project = func(images []eigenface.Image) (*mat.Dense, error) {
			flat, err := eigenface.Flatten(images)
			if err != nil {
				return nil, err
			}
			return eigenface.CenterWith(flat, mean)
		}
	} else {
		var err error
		gallery, model, err = eigenface.Reduce(dataset.Images(p.Gallery), m.Rule)
		if err != nil {
			return nil, fmt.Errorf("failed to reduce gallery with %s: %w", m, err)
		}
		project = model.Project
	}

	known, err := projectProbes(p.Known, project)
	if err != nil {
		return nil, fmt.Errorf("failed to project known probes: %w", err)
	}
	unknown, err := projectProbes(p.Unknown, project)
	if err != nil {
		return nil, fmt.Errorf("failed to project unknown probes: %w", err)
	}

	_, components := gallery.Dims()
	prepared := &Prepared{
		Method: m,
		Model:  model,
		Inputs: evaluation.Inputs{
			Gallery:       gallery,
			GalleryLabels: dataset.Labels(p.Gallery),
			Known:         known,
			KnownLabels:   dataset.Labels(p.Known),
			Unknown:       unknown,
			UnknownLabels: dataset.Labels(p.Unknown),
		},
		Components: components,
		ReduceTime: time.Since(start),
	}

	logging.Component("pipeline").WithFields(logging.Fields{
		"method":     m.Name,
		"components": components,
		"elapsed":    prepared.ReduceTime,
	}).Info("prepared search space")

	return prepared, nil
}

func projectProbes(samples []dataset.Sample, project func([]eigenface.Image) (*mat.Dense, error)) (*mat.Dense, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	return project(dataset.Images(samples))
}

// Result is one method's sweep over a partition.
type Result struct {
	Method     string
	Components int
	Seed       int64
	Model      *eigenface.Model
	Records    []evaluation.MetricRecord
	ReduceTime time.Duration
}

// Run prepares the partition with m and sweeps the radius range of opts.
func Run(ctx context.Context, p *dataset.Partition, m Method, opts evaluation.SweepOptions) (*Result, error) {
	prepared, err := Prepare(p, m)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := evaluation.Sweep(ctx, prepared.Inputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep %s: %w", m, err)
	}

	log := logging.Component("pipeline").WithFields(logging.Fields{
		"method":  m.Name,
		"radii":   len(records),
		"elapsed": time.Since(start),
	})
	if best, ok := evaluation.Best(records); ok {
		log = log.WithFields(logging.Fields{"best_radius": best.Radius, "best_accuracy": best.Accuracy})
	}
	log.Info("sweep finished")

	return &Result{
		Method:     m.Name,
		Components: prepared.Components,
		Seed:       p.Seed,
		Model:      prepared.Model,
		Records:    records,
		ReduceTime: prepared.ReduceTime,
	}, nil
}

// Compare returns, per method of others, the speedup of each radius over baseline.
// Every result must come from the same partition seed.
func Compare(baseline *Result, others ...*Result) (map[string][]float64, error) {
	out := make(map[string][]float64, len(others))
	for _, other := range others {
		if other.Seed != baseline.Seed {
			return nil, fmt.Errorf("%w: %s ran on partition seed %d, %s on seed %d",
				evaluation.ErrMisalignedRuns, other.Method, other.Seed, baseline.Method, baseline.Seed)
		}
		s, err := evaluation.Speedup(baseline.Records, other.Records)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s with %s: %w", other.Method, baseline.Method, err)
		}
		out[other.Method] = s
	}
	return out, nil
}

// Spectrum decomposes the centred gallery, for scree inspection.
func Spectrum(gallery []dataset.Sample) (*eigenface.Spectrum, error) {
	flat, err := eigenface.Flatten(dataset.Images(gallery))
	if err != nil {
		return nil, err
	}
	centered, _ := eigenface.Center(flat)
	return eigenface.Decompose(centered)
}

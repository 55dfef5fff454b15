package eigenface

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoComponents is returned when a rule retains no component.
var ErrNoComponents = errors.New("no components selected")

// ErrInsufficientComponents is returned when a fixed-count rule asks for more
// components than the spectrum has.
var ErrInsufficientComponents = errors.New("not enough components")

// ErrInvalidRule is returned for unknown rule names or out-of-range parameters.
var ErrInvalidRule = errors.New("invalid selection rule")

// Default rule parameters.
const (
	DefaultInertiaThreshold = 0.8
	DefaultScreeCount       = 10
)

// Rule selects how many leading principal components to retain. It is a closed
// set: Kaiser, Inertia and Scree.
type Rule interface {
	Name() string
	// String includes the rule parameters, so two rules with the same String
	// select the same components.
	String() string
	isRule()
}

// Kaiser keeps the leading eigenvalues that are at least the mean eigenvalue.
type Kaiser struct{}

// Inertia keeps the smallest prefix whose share of the total inertia exceeds Threshold.
type Inertia struct {
	Threshold float64
}

// Scree keeps exactly the first Count components.
type Scree struct {
	Count int
}

func (Kaiser) Name() string  { return "kaiser" }
func (Inertia) Name() string { return "inertia" }
func (Scree) Name() string   { return "scree" }

func (Kaiser) String() string    { return "kaiser" }
func (r Inertia) String() string { return fmt.Sprintf("inertia(threshold=%g)", r.Threshold) }
func (r Scree) String() string   { return fmt.Sprintf("scree(count=%d)", r.Count) }

func (Kaiser) isRule()  {}
func (Inertia) isRule() {}
func (Scree) isRule()   {}

// ParseRule returns the named rule with default parameters.
func ParseRule(name string) (Rule, error) {
	return NewRule(name, DefaultInertiaThreshold, DefaultScreeCount)
}

// NewRule builds a rule by name. "coude" is accepted as an alias of "scree".
func NewRule(name string, inertiaThreshold float64, screeCount int) (Rule, error) {
	var rule Rule
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kaiser":
		rule = Kaiser{}
	case "inertia":
		rule = Inertia{Threshold: inertiaThreshold}
	case "scree", "coude":
		rule = Scree{Count: screeCount}
	default:
		return nil, fmt.Errorf("%w: unknown rule %q", ErrInvalidRule, name)
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func validateRule(rule Rule) error {
	switch r := rule.(type) {
	case Kaiser:
		return nil
	case Inertia:
		if r.Threshold <= 0 || r.Threshold > 1 {
			return fmt.Errorf("%w: inertia threshold %v not in (0, 1]", ErrInvalidRule, r.Threshold)
		}
		return nil
	case Scree:
		if r.Count <= 0 {
			return fmt.Errorf("%w: scree count %d must be positive", ErrInvalidRule, r.Count)
		}
		return nil
	case nil:
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	default:
		return fmt.Errorf("%w: unsupported rule %T", ErrInvalidRule, rule)
	}
}

// SelectIndices returns the indices of the components the rule retains from
// eigenvalues sorted in descending order.
func SelectIndices(values []float64, rule Rule) ([]int, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	var count int
	switch r := rule.(type) {
	case Kaiser:
		count = kaiserCount(values)
	case Inertia:
		count = inertiaCount(values, r.Threshold)
	case Scree:
		if len(values) < r.Count {
			return nil, fmt.Errorf("%w: scree needs %d, spectrum has %d", ErrInsufficientComponents, r.Count, len(values))
		}
		count = r.Count
	}

	if count == 0 {
		return nil, fmt.Errorf("%w by %s rule", ErrNoComponents, rule.Name())
	}

	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return indices, nil
}

func kaiserCount(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	mean := floats.Sum(values) / float64(len(values))

	count := 0
	for count < len(values) && values[count] >= mean {
		count++
	}
	return count
}

// inertiaCount includes index i while the inertia of the components before i
// is still at most threshold of the total.
func inertiaCount(values []float64, threshold float64) int {
	total := floats.Sum(values)
	if total <= 0 {
		return 0
	}

	count := 0
	var cumulative float64
	for count < len(values) && cumulative/total <= threshold {
		cumulative += values[count]
		count++
	}
	return count
}

// Basis is the set of retained eigenfaces: unit column vectors (d×k) and their eigenvalues.
type Basis struct {
	Values  []float64
	Vectors *mat.Dense
}

// Len returns the number of retained components k.
func (b *Basis) Len() int { return len(b.Values) }

// Dim returns the length d of each basis vector.
func (b *Basis) Dim() int {
	d, _ := b.Vectors.Dims()
	return d
}

// SelectComponents applies rule to the spectrum and copies the retained eigenpairs.
func SelectComponents(spectrum *Spectrum, rule Rule) (*Basis, error) {
	indices, err := SelectIndices(spectrum.Values, rule)
	if err != nil {
		return nil, err
	}

	k := len(indices)
	d, _ := spectrum.Vectors.Dims()
	return &Basis{
		Values:  append([]float64(nil), spectrum.Values[:k]...),
		Vectors: mat.DenseCopyOf(spectrum.Vectors.Slice(0, d, 0, k)),
	}, nil
}

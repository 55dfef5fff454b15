package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/MrCodeEU/eigenauth/pkg/logging"
)

// ErrEmptyPartition is returned when the sampling pool runs out before the
// requested number of probes has been drawn, or when no gallery image remains.
var ErrEmptyPartition = errors.New("sampling pool exhausted")

// ErrPartitionInvariant is returned by Validate for overlapping or inconsistent partitions.
var ErrPartitionInvariant = errors.New("partition invariant violated")

// Partition is one gallery / known-probe / unknown-probe split.
type Partition struct {
	Gallery []Sample
	Known   []Sample
	Unknown []Sample
	Seed    int64
}

// Validate checks that every known-probe subject is in the gallery and that no
// unknown-probe subject appears in the gallery or among the known probes.
func (p *Partition) Validate() error {
	if len(p.Gallery) == 0 {
		return fmt.Errorf("%w: empty gallery", ErrPartitionInvariant)
	}

	gallery := subjectSet(p.Gallery)
	known := subjectSet(p.Known)

	for _, s := range p.Known {
		if !gallery[s.Label.Subject()] {
			return fmt.Errorf("%w: known probe %s has no gallery image", ErrPartitionInvariant, s.Label)
		}
	}
	for _, s := range p.Unknown {
		subject := s.Label.Subject()
		if gallery[subject] || known[subject] {
			return fmt.Errorf("%w: unknown probe %s is enrolled", ErrPartitionInvariant, s.Label)
		}
	}
	return nil
}

func subjectSet(samples []Sample) map[string]bool {
	set := make(map[string]bool, len(samples))
	for _, s := range samples {
		set[s.Label.Subject()] = true
	}
	return set
}

// Partitioner draws partitions from a seeded random source.
type Partitioner struct {
	seed int64
	rng  *rand.Rand
}

// NewPartitioner returns a partitioner seeded with seed. A zero seed is
// replaced by the current time; Seed reports the value actually used.
func NewPartitioner(seed int64) *Partitioner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Partitioner{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed of the random source.
func (p *Partitioner) Seed() int64 { return p.seed }

// Partition draws probes unknown probes, then probes known probes, from samples.
//
// Each unknown probe removes every image of its subject from the pool, so that
// person is never enrolled. Each known probe removes only itself and is only
// drawn from subjects that keep at least one other image in the pool. What is
// left in the pool becomes the gallery.
func (p *Partitioner) Partition(samples []Sample, probes int) (*Partition, error) {
	if probes < 0 {
		return nil, fmt.Errorf("probe count must not be negative, got %d", probes)
	}

	pool := roaring.New()
	pool.AddRange(0, uint64(len(samples)))

	bySubject := make(map[string][]uint32)
	remaining := make(map[string]int)
	for i, s := range samples {
		subject := s.Label.Subject()
		bySubject[subject] = append(bySubject[subject], uint32(i))
		remaining[subject]++
	}

	part := &Partition{Seed: p.seed}

	for len(part.Unknown) < probes {
		idx, ok := p.draw(pool)
		if !ok {
			return nil, fmt.Errorf("%w: drew %d of %d unknown probes", ErrEmptyPartition, len(part.Unknown), probes)
		}
		s := samples[idx]
		part.Unknown = append(part.Unknown, s)

		subject := s.Label.Subject()
		for _, j := range bySubject[subject] {
			pool.Remove(j)
		}
		remaining[subject] = 0
	}

	for len(part.Known) < probes {
		eligible := roaring.New()
		it := pool.Iterator()
		for it.HasNext() {
			i := it.Next()
			if remaining[samples[i].Label.Subject()] >= 2 {
				eligible.Add(i)
			}
		}

		idx, ok := p.draw(eligible)
		if !ok {
			return nil, fmt.Errorf("%w: drew %d of %d known probes", ErrEmptyPartition, len(part.Known), probes)
		}
		s := samples[idx]
		part.Known = append(part.Known, s)
		pool.Remove(idx)
		remaining[s.Label.Subject()]--
	}

	part.Gallery = make([]Sample, 0, pool.GetCardinality())
	for _, i := range pool.ToArray() {
		part.Gallery = append(part.Gallery, samples[i])
	}
	if len(part.Gallery) == 0 {
		return nil, fmt.Errorf("%w: no gallery images left", ErrEmptyPartition)
	}

	logging.Component("dataset").WithFields(logging.Fields{
		"seed":    p.seed,
		"gallery": len(part.Gallery),
		"known":   len(part.Known),
		"unknown": len(part.Unknown),
	}).Info("partitioned samples")

	return part, nil
}

// draw picks a uniformly random member of set.
func (p *Partitioner) draw(set *roaring.Bitmap) (uint32, bool) {
	card := set.GetCardinality()
	if card == 0 {
		return 0, false
	}
	idx, err := set.Select(uint32(p.rng.Int63n(int64(card))))
	if err != nil {
		return 0, false
	}
	return idx, true
}

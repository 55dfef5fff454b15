package dataset

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
)

func syntheticSamples(t *testing.T, subjects, instances int) []Sample {
	t.Helper()
	var samples []Sample
	for s := 1; s <= subjects; s++ {
		for i := 1; i <= instances; i++ {
			img, err := eigenface.NewImageFromPix(2, []float64{float64(s), float64(i), 0, 1})
			require.NoError(t, err)
			samples = append(samples, Sample{Image: img, Label: Label(fmt.Sprintf("%d.%d", s, i))})
		}
	}
	return samples
}

func TestLabel(t *testing.T) {
	l, err := ParseLabel("12.3")
	require.NoError(t, err)
	assert.Equal(t, "12", l.Subject())
	assert.Equal(t, "3", l.Instance())
	assert.True(t, l.SameSubject("12.9"))
	assert.False(t, l.SameSubject("1.3"), "subjects compare exactly, not by prefix")
	assert.False(t, Label("1.2").SameSubject("11.2"))

	for _, bad := range []string{"12", ".3", "12.", ""} {
		_, err := ParseLabel(bad)
		assert.Error(t, err, bad)
	}
}

func writePNG(t *testing.T, path string, w, h int, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "2.1.png"), 4, 4, 200)
	writePNG(t, filepath.Join(dir, "1.1.png"), 4, 4, 10)

	// colour BMP goes through the x/image decoder and gray conversion
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			rgba.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(dir, "1.2.bmp"))
	require.NoError(t, err)
	require.NoError(t, bmp.Encode(f, rgba))
	require.NoError(t, f.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	samples, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, []Label{"1.1", "1.2", "2.1"}, Labels(samples))
	assert.Equal(t, 4, samples[0].Image.Side())
	assert.Equal(t, 10.0, samples[0].Image.At(0, 0))
	assert.Equal(t, 255.0, samples[1].Image.At(3, 3))
	assert.Equal(t, 200.0, samples[2].Image.At(2, 1))
}

func TestLoadDir_NonSquare(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "1.1.png"), 4, 3, 0)

	_, err := LoadDir(dir)
	assert.ErrorIs(t, err, eigenface.ErrShape)
}

func TestLoadDir_SkipsBadLabels(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "1.1.png"), 4, 4, 10)
	writePNG(t, filepath.Join(dir, "1.2.png"), 4, 4, 20)
	// badly named files are skipped before decoding, so the non-square one is not an error
	writePNG(t, filepath.Join(dir, "face.png"), 4, 3, 30)
	writePNG(t, filepath.Join(dir, ".2.png"), 4, 4, 40)
	writePNG(t, filepath.Join(dir, "3..png"), 4, 4, 50)

	samples, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []Label{"1.1", "1.2"}, Labels(samples))
	for _, s := range samples {
		assert.Equal(t, "1", s.Label.Subject())
	}
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestPartition_Invariants(t *testing.T) {
	samples := syntheticSamples(t, 30, 5)

	part, err := NewPartitioner(7).Partition(samples, 10)
	require.NoError(t, err)
	require.NoError(t, part.Validate())

	assert.Len(t, part.Unknown, 10)
	assert.Len(t, part.Known, 10)
	// 10 subjects removed entirely, 10 more images taken as known probes
	assert.Len(t, part.Gallery, 150-10*5-10)
	assert.Equal(t, int64(7), part.Seed)

	seen := make(map[Label]bool)
	for _, group := range [][]Sample{part.Gallery, part.Known, part.Unknown} {
		for _, s := range group {
			assert.False(t, seen[s.Label], "sample %s appears twice", s.Label)
			seen[s.Label] = true
		}
	}
}

func TestPartition_Reproducible(t *testing.T) {
	samples := syntheticSamples(t, 20, 4)

	a, err := NewPartitioner(99).Partition(samples, 5)
	require.NoError(t, err)
	b, err := NewPartitioner(99).Partition(samples, 5)
	require.NoError(t, err)

	assert.Equal(t, Labels(a.Unknown), Labels(b.Unknown))
	assert.Equal(t, Labels(a.Known), Labels(b.Known))
	assert.Equal(t, Labels(a.Gallery), Labels(b.Gallery))
}

func TestPartition_PrefixSubjectsStayDistinct(t *testing.T) {
	samples := syntheticSamples(t, 12, 3)

	for seed := int64(1); seed <= 20; seed++ {
		part, err := NewPartitioner(seed).Partition(samples, 3)
		require.NoError(t, err)
		require.NoError(t, part.Validate(), "seed %d", seed)
	}
}

func TestPartition_Exhausted(t *testing.T) {
	tests := []struct {
		name      string
		subjects  int
		instances int
		probes    int
	}{
		{"not enough subjects for unknown probes", 3, 4, 5},
		{"single-instance subjects cannot be known probes", 6, 1, 2},
		{"everything removed as unknown", 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPartitioner(1).Partition(syntheticSamples(t, tt.subjects, tt.instances), tt.probes)
			assert.ErrorIs(t, err, ErrEmptyPartition)
		})
	}
}

func TestPartition_ZeroSeedIsRecorded(t *testing.T) {
	p := NewPartitioner(0)
	assert.NotZero(t, p.Seed())

	_, err := p.Partition(nil, -1)
	assert.Error(t, err)
}

func TestValidate_DetectsViolations(t *testing.T) {
	samples := syntheticSamples(t, 3, 2)

	enrolledUnknown := &Partition{Gallery: samples[:4], Unknown: samples[4:5]}
	assert.NoError(t, enrolledUnknown.Validate())

	enrolledUnknown.Unknown = samples[0:1]
	assert.ErrorIs(t, enrolledUnknown.Validate(), ErrPartitionInvariant)

	orphanKnown := &Partition{Gallery: samples[:2], Known: samples[2:3]}
	assert.ErrorIs(t, orphanKnown.Validate(), ErrPartitionInvariant)

	assert.ErrorIs(t, (&Partition{}).Validate(), ErrPartitionInvariant)
}

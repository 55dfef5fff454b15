package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/evaluation"
)

// Run is one persisted radius sweep, the unit compared across methods.
type Run struct {
	ID         uuid.UUID                 `json:"id"`
	Method     string                    `json:"method"`
	Components int                       `json:"components"`
	Seed       int64                     `json:"seed"`
	CreatedAt  time.Time                 `json:"created_at"`
	Records    []evaluation.MetricRecord `json:"records"`
}

// NewRun stamps records with a fresh ID and the current time.
func NewRun(method string, components int, seed int64, records []evaluation.MetricRecord) *Run {
	return &Run{
		ID:         uuid.New(),
		Method:     method,
		Components: components,
		Seed:       seed,
		CreatedAt:  time.Now().UTC(),
		Records:    records,
	}
}

type sampleRecord struct {
	Label string    `json:"label"`
	Side  int       `json:"side"`
	Pix   []float64 `json:"pix"`
}

type partitionRecord struct {
	Seed    int64          `json:"seed"`
	Gallery []sampleRecord `json:"gallery"`
	Known   []sampleRecord `json:"known"`
	Unknown []sampleRecord `json:"unknown"`
}

func toSampleRecords(samples []dataset.Sample) []sampleRecord {
	out := make([]sampleRecord, len(samples))
	for i, s := range samples {
		out[i] = sampleRecord{Label: string(s.Label), Side: s.Image.Side(), Pix: s.Image.Pix()}
	}
	return out
}

func fromSampleRecords(records []sampleRecord) ([]dataset.Sample, error) {
	out := make([]dataset.Sample, len(records))
	for i, r := range records {
		img, err := eigenface.NewImageFromPix(r.Side, r.Pix)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", r.Label, err)
		}
		out[i] = dataset.Sample{Image: img, Label: dataset.Label(r.Label)}
	}
	return out, nil
}

func newPartitionRecord(p *dataset.Partition) partitionRecord {
	return partitionRecord{
		Seed:    p.Seed,
		Gallery: toSampleRecords(p.Gallery),
		Known:   toSampleRecords(p.Known),
		Unknown: toSampleRecords(p.Unknown),
	}
}

func (r partitionRecord) partition() (*dataset.Partition, error) {
	gallery, err := fromSampleRecords(r.Gallery)
	if err != nil {
		return nil, err
	}
	known, err := fromSampleRecords(r.Known)
	if err != nil {
		return nil, err
	}
	unknown, err := fromSampleRecords(r.Unknown)
	if err != nil {
		return nil, err
	}
	return &dataset.Partition{Gallery: gallery, Known: known, Unknown: unknown, Seed: r.Seed}, nil
}

type matrixRecord struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func newMatrixRecord(m *mat.Dense) matrixRecord {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return matrixRecord{Rows: r, Cols: c, Data: data}
}

func (r matrixRecord) dense() (*mat.Dense, error) {
	if r.Rows <= 0 || r.Cols <= 0 || len(r.Data) != r.Rows*r.Cols {
		return nil, fmt.Errorf("corrupt matrix: %dx%d with %d values", r.Rows, r.Cols, len(r.Data))
	}
	return mat.NewDense(r.Rows, r.Cols, append([]float64(nil), r.Data...)), nil
}

type modelRecord struct {
	Rule    string       `json:"rule"`
	Side    int          `json:"side"`
	Mean    []float64    `json:"mean"`
	Values  []float64    `json:"values"`
	Vectors matrixRecord `json:"vectors"`
	Params  string       `json:"params"`
	Gallery uint64       `json:"gallery,string"`
}

func newModelRecord(m *eigenface.Model) modelRecord {
	return modelRecord{
		Rule:    m.Rule,
		Side:    m.Side,
		Mean:    m.Mean,
		Values:  m.Basis.Values,
		Vectors: newMatrixRecord(m.Basis.Vectors),
		Params:  m.Params,
		Gallery: m.Gallery,
	}
}

func (r modelRecord) model() (*eigenface.Model, error) {
	vectors, err := r.Vectors.dense()
	if err != nil {
		return nil, err
	}
	d, k := vectors.Dims()
	if k != len(r.Values) || d != len(r.Mean) || d != r.Side*r.Side {
		return nil, fmt.Errorf("corrupt model: %dx%d basis, %d values, mean of %d, side %d", d, k, len(r.Values), len(r.Mean), r.Side)
	}
	return &eigenface.Model{
		Rule:    r.Rule,
		Side:    r.Side,
		Mean:    r.Mean,
		Basis:   &eigenface.Basis{Values: r.Values, Vectors: vectors},
		Params:  r.Params,
		Gallery: r.Gallery,
	}, nil
}

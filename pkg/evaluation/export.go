package evaluation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var metricHeader = []string{
	"radius", "accuracy", "precision", "recall", "specificity",
	"tp", "tn", "fp", "fn", "search_seconds",
}

// WriteCSV writes one row per record, suitable for plotting metric curves.
func WriteCSV(w io.Writer, records []MetricRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metricHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			formatFloat(r.Radius),
			formatFloat(r.Accuracy),
			formatFloat(r.Precision),
			formatFloat(r.Recall),
			formatFloat(r.Specificity),
			strconv.Itoa(r.Counts.TP),
			strconv.Itoa(r.Counts.TN),
			strconv.Itoa(r.Counts.FP),
			strconv.Itoa(r.Counts.FN),
			formatFloat(r.SearchTime.Seconds()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSpeedupCSV writes the radius column followed by one speedup column per
// named series. Every series must have one value per radius.
func WriteSpeedupCSV(w io.Writer, radii []float64, names []string, series [][]float64) error {
	if len(names) != len(series) {
		return fmt.Errorf("%d names for %d series", len(names), len(series))
	}
	for i, s := range series {
		if len(s) != len(radii) {
			return fmt.Errorf("%w: series %s has %d values for %d radii", ErrMisalignedRuns, names[i], len(s), len(radii))
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"radius"}, names...)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, r := range radii {
		row := make([]string, 0, len(series)+1)
		row = append(row, formatFloat(r))
		for _, s := range series {
			row = append(row, formatFloat(s[i]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

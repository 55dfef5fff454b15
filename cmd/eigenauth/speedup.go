package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/evaluation"
	"github.com/MrCodeEU/eigenauth/pkg/pipeline"
	"github.com/MrCodeEU/eigenauth/pkg/storage"
)

var speedupCmd = &cobra.Command{
	Use:   "speedup",
	Short: "Compare search time of stored runs against a baseline",
	Long: `Divide the baseline's search time by each method's search time at every
radius. Runs must come from the same sweep.

Examples:
  eigenauth speedup
  eigenauth speedup --baseline brute-force --methods kaiser,scree --csv speedup.csv`,
	Args: cobra.NoArgs,
	RunE: runSpeedup,
}

func init() {
	rootCmd.AddCommand(speedupCmd)

	speedupCmd.Flags().String("baseline", pipeline.BruteForceName, "Baseline method")
	speedupCmd.Flags().StringSlice("methods", nil, "Methods to compare (default: every other stored run)")
	speedupCmd.Flags().String("csv", "", "Write the speedup table to this CSV file")
}

func runSpeedup(cmd *cobra.Command, args []string) error {
	baselineName := mustGetString(cmd, "baseline")
	csvPath := mustGetString(cmd, "csv")

	store, err := openStore()
	if err != nil {
		return err
	}

	names := mustGetStringSlice(cmd, "methods")
	if len(names) == 0 {
		stored, err := store.ListRuns()
		if err != nil {
			return err
		}
		for _, n := range stored {
			if n != baselineName {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no runs to compare with %s, run evaluate first", baselineName)
	}
	sort.Strings(names)

	baseline, err := loadResult(store, baselineName)
	if err != nil {
		return err
	}
	others := make([]*pipeline.Result, 0, len(names))
	for _, n := range names {
		r, err := loadResult(store, n)
		if err != nil {
			return err
		}
		others = append(others, r)
	}

	speedups, err := pipeline.Compare(baseline, others...)
	if err != nil {
		return err
	}

	radii := make([]float64, len(baseline.Records))
	for i, r := range baseline.Records {
		radii[i] = r.Radius
	}
	series := make([][]float64, len(names))
	for i, n := range names {
		series[i] = speedups[n]
	}

	fmt.Printf("%-12s", "radius")
	for _, n := range names {
		fmt.Printf(" %12s", n)
	}
	fmt.Println()
	for i, r := range radii {
		fmt.Printf("%-12.4g", r)
		for _, s := range series {
			fmt.Printf(" %11.2fx", s[i])
		}
		fmt.Println()
	}
	fmt.Printf("%-12s", "mean")
	for _, s := range series {
		fmt.Printf(" %11.2fx", mean(s))
	}
	fmt.Println()

	if csvPath == "" {
		return nil
	}
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", csvPath, err)
	}
	if err := evaluation.WriteSpeedupCSV(f, radii, names, series); err != nil {
		_ = f.Close()
		return err
	}
	fmt.Printf("\nSpeedups written to %s\n", csvPath)
	return f.Close()
}

func loadResult(store *storage.FileStore, method string) (*pipeline.Result, error) {
	run, err := store.LoadRun(method)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s run: %w", method, err)
	}
	return &pipeline.Result{
		Method:     run.Method,
		Components: run.Components,
		Seed:       run.Seed,
		Records:    run.Records,
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

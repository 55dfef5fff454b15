package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/pipeline"
)

var screeCmd = &cobra.Command{
	Use:   "scree",
	Short: "Show the eigenvalue spectrum of a partition's gallery",
	Long: `Decompose the gallery of a stored partition and print the share of total
inertia carried by each component, along with how many components each
selection rule keeps.

Examples:
  eigenauth scree --top 30
  eigenauth scree --partition small --csv scree.csv`,
	Args: cobra.NoArgs,
	RunE: runScree,
}

func init() {
	rootCmd.AddCommand(screeCmd)

	screeCmd.Flags().String("partition", "default", "Stored partition name")
	screeCmd.Flags().Int("top", 20, "Number of components to print")
	screeCmd.Flags().String("csv", "", "Write the full spectrum to this CSV file")
}

func runScree(cmd *cobra.Command, args []string) error {
	top := mustGetInt(cmd, "top")
	csvPath := mustGetString(cmd, "csv")

	store, err := openStore()
	if err != nil {
		return err
	}
	part, err := store.LoadPartition(mustGetString(cmd, "partition"))
	if err != nil {
		return err
	}

	spectrum, err := pipeline.Spectrum(part.Gallery)
	if err != nil {
		return fmt.Errorf("failed to decompose gallery: %w", err)
	}
	shares := eigenface.InertiaShares(spectrum.Values)

	fmt.Printf("%-6s %16s %9s %11s\n", "Comp", "Eigenvalue", "Share %", "Cumul. %")
	var cumulative float64
	for i, v := range spectrum.Values {
		cumulative += shares[i]
		if i < top {
			fmt.Printf("%-6d %16.6g %9.3f %11.3f\n", i+1, v, shares[i], cumulative)
		}
	}
	fmt.Println()

	for _, name := range ruleNames {
		rule, err := eigenface.NewRule(name, cfg.PCA.InertiaThreshold, cfg.PCA.ScreeCount)
		if err != nil {
			return err
		}
		indices, err := eigenface.SelectIndices(spectrum.Values, rule)
		if err != nil {
			fmt.Printf("  %-8s %v\n", name, err)
			continue
		}
		fmt.Printf("  %-8s keeps %d of %d components\n", name, len(indices), spectrum.Len())
	}

	if csvPath == "" {
		return nil
	}
	return writeScreeCSV(csvPath, spectrum.Values, shares)
}

func writeScreeCSV(path string, values, shares []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"component", "eigenvalue", "share_percent"}); err != nil {
		return err
	}
	for i, v := range values {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(v, 'g', -1, 64),
			strconv.FormatFloat(shares[i], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	fmt.Printf("\nSpectrum written to %s\n", path)
	return f.Close()
}

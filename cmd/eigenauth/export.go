package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/evaluation"
)

var exportCmd = &cobra.Command{
	Use:   "export <method>",
	Short: "Export a stored run as CSV",
	Long: `Write the metric records of a stored run as CSV for plotting, or print its
ROC points.

Examples:
  eigenauth export kaiser > kaiser.csv
  eigenauth export scree --out scree.csv
  eigenauth export brute-force --roc`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("out", "", "Output file (default stdout)")
	exportCmd.Flags().Bool("roc", false, "Print ROC points instead of CSV")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	run, err := store.LoadRun(args[0])
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if path := mustGetString(cmd, "out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if mustGetBool(cmd, "roc") {
		fmt.Fprintf(out, "# run %s (%s, %d components)\n", run.ID, run.Method, run.Components)
		fmt.Fprintf(out, "%-12s %8s %8s\n", "radius", "fpr", "tpr")
		for _, p := range evaluation.ROC(run.Records) {
			fmt.Fprintf(out, "%-12.4g %8.4f %8.4f\n", p.Radius, p.FalsePositiveRate, p.TruePositiveRate)
		}
		return nil
	}
	return evaluation.WriteCSV(out, run.Records)
}

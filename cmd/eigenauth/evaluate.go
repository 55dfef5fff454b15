package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/evaluation"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
	"github.com/MrCodeEU/eigenauth/pkg/pipeline"
	"github.com/MrCodeEU/eigenauth/pkg/storage"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Sweep the search radius for one or more methods",
	Long: `Reduce the gallery of a stored partition with each method, project the
probes into the same space and evaluate authorization at every radius of the
sweep. Each run is stored per method for later speedup comparison; PCA
methods also store their fitted model for the authorize command.

Radii are squared Euclidean distances.

Examples:
  # All methods over the configured sweep
  eigenauth evaluate

  # Only Kaiser and brute force, 4 search workers
  eigenauth evaluate --methods kaiser,brute-force --workers 4

  # Custom sweep
  eigenauth evaluate --start 0 --max 5e6 --step 2.5e5`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("partition", "default", "Stored partition name")
	evaluateCmd.Flags().StringSlice("methods", append([]string{pipeline.BruteForceName}, ruleNames...), "Methods to evaluate")
	evaluateCmd.Flags().Float64("start", 0, "First radius (default from config)")
	evaluateCmd.Flags().Float64("max", 0, "Exclusive upper radius (default from config)")
	evaluateCmd.Flags().Float64("step", 0, "Radius increment (default from config)")
	evaluateCmd.Flags().Int("workers", 0, "Parallel search workers (default from config)")
	evaluateCmd.Flags().Bool("quiet", false, "Disable the progress bar")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	opts := evaluation.SweepOptions{
		Start:   float64Or(cmd, "start", cfg.Search.RadiusStart),
		Max:     float64Or(cmd, "max", cfg.Search.RadiusMax),
		Step:    float64Or(cmd, "step", cfg.Search.Step),
		Workers: intOr(cmd, "workers", cfg.Search.Workers),
	}
	radii, err := opts.Radii()
	if err != nil {
		return err
	}
	quiet := mustGetBool(cmd, "quiet")

	methods := make([]pipeline.Method, 0)
	for _, name := range mustGetStringSlice(cmd, "methods") {
		m, err := pipeline.ParseMethod(name, cfg.PCA.InertiaThreshold, cfg.PCA.ScreeCount)
		if err != nil {
			return err
		}
		methods = append(methods, m)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	partitionName := mustGetString(cmd, "partition")
	part, err := store.LoadPartition(partitionName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Sweeping %d radii over %d gallery images, %d known and %d unknown probes\n\n",
		len(radii), len(part.Gallery), len(part.Known), len(part.Unknown))

	for _, m := range methods {
		if !quiet {
			bar := progressbar.NewOptions(len(radii),
				progressbar.OptionSetDescription(fmt.Sprintf("%-12s", m.Name)),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("radii"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
			opts.Progress = func(done, total int) { _ = bar.Set(done) }
		}

		result, err := pipeline.Run(ctx, part, m, opts)
		if err != nil {
			return err
		}
		if !quiet {
			fmt.Println()
		}

		run := storage.NewRun(result.Method, result.Components, result.Seed, result.Records)
		if err := store.SaveRun(run); err != nil {
			return fmt.Errorf("failed to save %s run: %w", m.Name, err)
		}
		if result.Model != nil {
			if err := store.SaveModel(modelName(partitionName, m.Name), result.Model); err != nil {
				return fmt.Errorf("failed to save %s model: %w", m.Name, err)
			}
		}
		logging.Component("cli").WithFields(logging.Fields{
			"method": m.Name,
			"run_id": run.ID,
		}).Info("stored run")

		printSummary(result)
	}
	return nil
}

func printSummary(result *pipeline.Result) {
	var total float64
	for _, r := range result.Records {
		total += r.SearchTime.Seconds()
	}
	fmt.Printf("  %s: %d components, reduced in %s, %.3fs searching\n",
		result.Method, result.Components, result.ReduceTime.Round(time.Millisecond), total)

	best, ok := evaluation.Best(result.Records)
	if !ok {
		fmt.Println()
		return
	}
	fmt.Printf("  best radius %.4g: accuracy %.3f, precision %.3f, recall %.3f, specificity %.3f\n\n",
		best.Radius, best.Accuracy, best.Precision, best.Recall, best.Specificity)
}

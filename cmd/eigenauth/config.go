package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Long: `Show the configuration in effect after defaults, the config file and
environment overrides are applied.

Configuration locations:
  System: /etc/eigenauth/eigenauth.yaml
  User:   ~/.config/eigenauth/eigenauth.yaml

Use --config (or EIGENAUTH_CONFIG) to specify a custom config file and
--init to write the current configuration to a file.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().String("init", "", "Write the current configuration to this path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if path := mustGetString(cmd, "init"); path != "" {
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	}

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Dataset]")
	fmt.Printf("  Image Dir:       %s\n", cfg.Dataset.ImageDir)
	fmt.Printf("  Probes:          %d\n", cfg.Dataset.Probes)
	fmt.Printf("  Seed:            %d\n", cfg.Dataset.Seed)
	fmt.Println()
	fmt.Println("[PCA]")
	fmt.Printf("  Rule:            %s\n", cfg.PCA.Rule)
	fmt.Printf("  Inertia:         %.2f\n", cfg.PCA.InertiaThreshold)
	fmt.Printf("  Scree Count:     %d\n", cfg.PCA.ScreeCount)
	fmt.Println()
	fmt.Println("[Search]")
	fmt.Printf("  Radius:          %g\n", cfg.Search.Radius)
	fmt.Printf("  Sweep:           [%g, %g) step %g\n", cfg.Search.RadiusStart, cfg.Search.RadiusMax, cfg.Search.Step)
	fmt.Printf("  Workers:         %d\n", cfg.Search.Workers)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("  Compression:     %s\n", cfg.Storage.Compression)
	fmt.Printf("  Encryption:      %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:           %s\n", cfg.Logging.Level)
	fmt.Printf("  Format:          %s\n", cfg.Logging.Format)
	fmt.Printf("  File:            %s\n", cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nWarning: %v\n", err)
	}
	return nil
}

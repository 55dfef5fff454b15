package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/config"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
	"github.com/MrCodeEU/eigenauth/pkg/storage"
)

// ruleNames are the PCA component selection rules, in display order.
var ruleNames = []string{"kaiser", "inertia", "scree"}

var (
	cfg        *config.Config
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "eigenauth",
	Short: "Eigenface face authorization experiments",
	Long: `eigenauth authorizes faces by radius search in an eigenface space.

It splits a directory of <subject>.<instance> images into a gallery, known
probes and unknown probes, reduces the gallery with PCA (Kaiser, inertia or
scree rule), and measures accuracy, precision, recall, specificity and search
time over a range of radii. Brute-force search on raw pixels is the baseline.`,
	SilenceUsage: true,
}

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.WithError(err).Debug("command failed")
		fmt.Fprintln(os.Stderr, "Error:", err)

		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	if configFile == "" {
		configFile = os.Getenv("EIGENAUTH_CONFIG")
	}

	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if dir := os.Getenv("EIGENAUTH_DATA_DIR"); dir != "" {
		cfg.Storage.DataDir = dir
	}

	cfg.ExpandPaths()

	logLevel := cfg.Logging.Level
	if debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("eigenauth %s starting", Version)
	logging.Debugf("Config loaded, storage dir: %s", cfg.Storage.DataDir)
}

// openStore validates the configuration and opens the file store it names.
func openStore() (*storage.FileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	compression, err := storage.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	return storage.NewFileStore(cfg.Storage.DataDir, storage.Options{
		Compression:       compression,
		EncryptionEnabled: cfg.Storage.EncryptionEnabled,
	})
}

// modelName keys a fitted model by the partition it was fitted on and its method.
func modelName(partition, method string) string {
	return partition + "." + method
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrCodeEU/eigenauth/pkg/auth"
	"github.com/MrCodeEU/eigenauth/pkg/dataset"
	"github.com/MrCodeEU/eigenauth/pkg/eigenface"
	"github.com/MrCodeEU/eigenauth/pkg/logging"
	"github.com/MrCodeEU/eigenauth/pkg/pipeline"
	"github.com/MrCodeEU/eigenauth/pkg/storage"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize <image>",
	Short: "Authorize a face image against a partition's gallery",
	Long: `Project a face image into the eigenface space of a stored partition and
accept it if an enrolled face lies within the radius (squared distance).
With --as the image must match that subject's images. The model stored by
evaluate is reused when it was fitted on the same gallery with the same rule
parameters; otherwise a model is fitted and stored.

Exit codes: 0 authorized, 1 not recognized, 2 subject not enrolled or empty
gallery, 3 image size mismatch.

Examples:
  eigenauth authorize probe.png
  eigenauth authorize probe.png --method kaiser --radius 3e6
  eigenauth authorize probe.png --as 17`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthorize,
}

func init() {
	rootCmd.AddCommand(authorizeCmd)

	authorizeCmd.Flags().String("partition", "default", "Stored partition name")
	authorizeCmd.Flags().String("method", "", "PCA rule (default from config)")
	authorizeCmd.Flags().Float64("radius", 0, "Acceptance radius (default from config)")
	authorizeCmd.Flags().String("as", "", "Claimed subject")
	authorizeCmd.Flags().Bool("refit", false, "Fit a new model even if one is stored")
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	radius := float64Or(cmd, "radius", cfg.Search.Radius)
	subject := mustGetString(cmd, "as")

	m, err := pipeline.ParseMethod(stringOr(cmd, "method", cfg.PCA.Rule), cfg.PCA.InertiaThreshold, cfg.PCA.ScreeCount)
	if err != nil {
		return err
	}
	if m.IsBruteForce() {
		return fmt.Errorf("authorize needs a PCA rule, not %s", m.Name)
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
	if len(part.Gallery) == 0 {
		return fmt.Errorf("partition %s has an empty gallery", partitionName)
	}

	model, err := loadOrFitModel(store, modelName(partitionName, m.Name), part, m, mustGetBool(cmd, "refit"))
	if err != nil {
		return err
	}

	authenticator, err := auth.NewEigenAuthenticator(model, part.Gallery, radius)
	if err != nil {
		return err
	}

	img, err := dataset.LoadImage(args[0])
	if err != nil {
		return err
	}

	var result auth.AuthResult
	if subject != "" {
		result = authenticator.AuthenticateAs(subject, img)
	} else {
		result = authenticator.Authenticate(img)
	}

	if result.Label != "" {
		fmt.Printf("Nearest:   %s (squared distance %.6g, radius %.6g)\n", result.Label, result.Distance, radius)
		fmt.Printf("Neighbors: %d\n", result.Neighbors)
	}
	fmt.Printf("Time:      %s\n", result.Duration)

	if !result.Success {
		fmt.Println("Result:    DENIED")
		return &exitError{code: authExitCode(result), err: result.Error}
	}
	fmt.Printf("Result:    AUTHORIZED as subject %s\n", result.Subject)
	return nil
}

// loadOrFitModel reuses the stored model only when it was fitted on this
// gallery with the same rule parameters.
func loadOrFitModel(store *storage.FileStore, name string, part *dataset.Partition, m pipeline.Method, refit bool) (*eigenface.Model, error) {
	images := dataset.Images(part.Gallery)
	if !refit {
		model, err := store.LoadModel(name)
		switch {
		case err == nil && model.FittedOn(images, m.Rule):
			return model, nil
		case err == nil:
			logging.Infof("Stored model %s does not match %s on this gallery, refitting", name, m.Rule)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, err
		}
	}

	logging.Infof("Fitting %s model on %d gallery images", m.Rule, len(part.Gallery))
	_, model, err := eigenface.Reduce(images, m.Rule)
	if err != nil {
		return nil, err
	}
	if err := store.SaveModel(name, model); err != nil {
		return nil, fmt.Errorf("failed to save %s model: %w", m.Name, err)
	}
	return model, nil
}

// authExitCode maps an authentication result to the process exit code.
func authExitCode(result auth.AuthResult) int {
	if result.Success {
		return 0
	}

	var authErr *auth.AuthError
	if !errors.As(result.Error, &authErr) {
		return 1
	}
	switch authErr.Code {
	case auth.ErrCodeNotEnrolled, auth.ErrCodeEmptyGallery:
		return 2
	case auth.ErrCodeShapeMismatch:
		return 3
	default:
		return 1
	}
}

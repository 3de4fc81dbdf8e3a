package gcloudcmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// CheckGcloudAvailable checks that the gcloud binary is present and runnable
// before any deploy is attempted.
func CheckGcloudAvailable(ctx context.Context, binary string, logger zerolog.Logger) error {
	if binary == "" {
		binary = "gcloud"
	}
	logger.Info().Str("binary", binary).Msg("Checking gcloud availability...")
	cmd := exec.CommandContext(ctx, binary, "version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("gcloud not available: %w, output: %s", err, string(output))
	}
	logger.Info().Msg("gcloud is available.")
	return nil
}

// Runner executes deploy requests against the gcloud binary.
type Runner struct {
	binary string
	logger zerolog.Logger
}

// NewRunner creates a Runner. An empty binary falls back to "gcloud" on the
// PATH.
func NewRunner(binary string, logger zerolog.Logger) *Runner {
	if binary == "" {
		binary = "gcloud"
	}
	return &Runner{
		binary: binary,
		logger: logger.With().Str("component", "GcloudRunner").Logger(),
	}
}

// Run echoes and executes the deploy request, blocking until gcloud exits.
// The tool's own output streams into the logger as it happens.
func (r *Runner) Run(ctx context.Context, req *DeployRequest) error {
	args, err := req.Args()
	if err != nil {
		return err
	}

	r.logger.Info().Str("service_name", req.Service).Str("command", req.String()).Msg("Running deploy command...")

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = r.logger
	cmd.Stderr = r.logger

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("deploy command failed for service '%s': %w", req.Service, err)
	}

	r.logger.Info().Str("service_name", req.Service).Msg("Deploy command completed successfully.")
	return nil
}

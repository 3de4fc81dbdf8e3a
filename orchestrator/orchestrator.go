// Package orchestrator drives a full service deployment from a
// deployment descriptor: synthesize the deploy command, run it, then
// apply invoker permissions to the resulting Cloud Run service.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/agent-deployer/cloudrun"
	"github.com/illmade-knight/agent-deployer/config"
	"github.com/illmade-knight/agent-deployer/descriptor"
	"github.com/illmade-knight/agent-deployer/gcloudcmd"
)

// CommandRunner executes a synthesized deploy request.
type CommandRunner interface {
	Run(ctx context.Context, req *gcloudcmd.DeployRequest) error
}

// RunService manages the deployed Cloud Run service after the deploy
// command has completed.
type RunService interface {
	GrantInvokers(ctx context.Context, d *descriptor.Descriptor) cloudrun.InvokerResult
	ServiceURL(ctx context.Context, serviceName string) (string, error)
}

// SecretChecker verifies that referenced secrets exist before a deploy
// is attempted. A nil checker disables the preflight.
type SecretChecker interface {
	Exists(ctx context.Context, secretID string) (bool, error)
}

// Deployer coordinates a single descriptor deployment.
type Deployer struct {
	cfg     *config.Infra
	runner  CommandRunner
	service RunService
	secrets SecretChecker
	logger  zerolog.Logger
}

// NewDeployer assembles a Deployer. secrets may be nil, which skips
// the secret preflight check.
func NewDeployer(cfg *config.Infra, runner CommandRunner, service RunService, secrets SecretChecker, logger zerolog.Logger) *Deployer {
	return &Deployer{
		cfg:     cfg,
		runner:  runner,
		service: service,
		secrets: secrets,
		logger:  logger.With().Str("component", "Deployer").Logger(),
	}
}

// Deploy loads the descriptor at path and carries it through the full
// deployment sequence. Invoker grant failures are reported in the
// returned result rather than as an error.
func (dp *Deployer) Deploy(ctx context.Context, path string) (cloudrun.InvokerResult, error) {
	logger := dp.logger.With().Str("run_id", uuid.NewString()).Logger()

	d, err := descriptor.Load(path)
	if err != nil {
		return cloudrun.InvokerResult{}, fmt.Errorf("failed to load descriptor %s: %w", path, err)
	}
	logger = logger.With().Str("service_name", d.ServiceName).Logger()

	req, err := gcloudcmd.Synthesize(d, dp.cfg)
	if err != nil {
		return cloudrun.InvokerResult{}, fmt.Errorf("failed to synthesize deploy command for %s: %w", d.ServiceName, err)
	}

	dp.preflightSecrets(ctx, d, logger)

	logger.Info().Str("image", req.Image).Msg("Starting deployment...")
	if err := dp.runner.Run(ctx, req); err != nil {
		return cloudrun.InvokerResult{}, fmt.Errorf("deploy command failed for %s: %w", d.ServiceName, err)
	}

	if url, err := dp.service.ServiceURL(ctx, d.ServiceName); err != nil {
		logger.Warn().Err(err).Msg("Could not resolve service URL after deploy")
	} else {
		logger.Info().Str("url", url).Msg("Service deployed successfully.")
	}

	result := dp.service.GrantInvokers(ctx, d)
	logger.Info().
		Int("granted", result.Granted).
		Int("failed", result.Failed).
		Msg("Deployment complete.")
	return result, nil
}

// preflightSecrets warns about referenced secrets that do not yet
// exist. The deploy proceeds regardless; Cloud Run will surface the
// hard failure if a secret is truly absent at start time.
func (dp *Deployer) preflightSecrets(ctx context.Context, d *descriptor.Descriptor, logger zerolog.Logger) {
	if dp.secrets == nil {
		return
	}
	for _, b := range d.SecretRefs() {
		exists, err := dp.secrets.Exists(ctx, b.Secret)
		if err != nil {
			logger.Warn().Err(err).Str("secret", b.Secret).Msg("Secret preflight check failed")
			continue
		}
		if !exists {
			logger.Warn().Str("secret", b.Secret).Str("env_var", b.Name).Msg("Referenced secret does not exist yet")
		}
	}
}

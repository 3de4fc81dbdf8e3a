package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/illmade-knight/agent-deployer/cloudrun"
	"github.com/illmade-knight/agent-deployer/config"
	"github.com/illmade-knight/agent-deployer/descriptor"
	"github.com/illmade-knight/agent-deployer/gcloudcmd"
	"github.com/illmade-knight/agent-deployer/orchestrator"
	"github.com/illmade-knight/agent-deployer/secrets"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	pflag.String("action", "deploy", "Action to perform: deploy, sync-secrets, or fetch-secrets")
	pflag.String("descriptor", "deployment.json", "Path to the deployment descriptor")
	pflag.String("env-file", ".env", "Path to the env file for sync-secrets")
	pflag.String("config", "infra.yaml", "Path to the infrastructure config file")
	pflag.String("project-id", "", "Google Cloud project ID (overrides config file)")
	pflag.String("region", "", "Google Cloud region (overrides config file)")
	pflag.Parse()

	v := viper.New()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		log.Fatal().Err(err).Msg("Failed to bind command line flags")
	}

	cfg, err := config.LoadInfra(log.Logger, v)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load infrastructure config")
	}

	ctx := context.Background()
	action := v.GetString("action")
	descriptorPath := v.GetString("descriptor")

	switch action {
	case "deploy":
		runDeploy(ctx, cfg, descriptorPath)
	case "sync-secrets":
		runSync(ctx, cfg, v.GetString("env-file"))
	case "fetch-secrets":
		runFetch(ctx, cfg, descriptorPath)
	default:
		log.Fatal().Str("action", action).Msg("Unknown action")
	}
}

func runDeploy(ctx context.Context, cfg *config.Infra, descriptorPath string) {
	if err := gcloudcmd.CheckGcloudAvailable(ctx, cfg.GcloudBinary, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("gcloud is not available on this machine")
	}

	runClient, err := cloudrun.NewClient(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloud Run client")
	}
	defer func() {
		if err := runClient.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Cloud Run client")
		}
	}()

	// The preflight check is best-effort; deploys still work without
	// Secret Manager access.
	var checker orchestrator.SecretChecker
	manager, err := secrets.NewManager(ctx, cfg.ProjectID)
	if err != nil {
		log.Warn().Err(err).Msg("Secret Manager unavailable, skipping secret preflight")
	} else {
		checker = manager
		defer func() {
			if err := manager.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Secret Manager client")
			}
		}()
	}

	runner := gcloudcmd.NewRunner(cfg.GcloudBinary, log.Logger)
	deployer := orchestrator.NewDeployer(cfg, runner, runClient, checker, log.Logger)

	result, err := deployer.Deploy(ctx, descriptorPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Deployment failed")
	}
	// Partial invoker grants are an accepted terminal state; the deploy
	// itself succeeded.
	if result.Failed > 0 {
		log.Warn().Int("failed", result.Failed).Msg("Some invoker grants failed; re-run deploy to retry them")
	}
}

func runSync(ctx context.Context, cfg *config.Infra, envFile string) {
	manager, err := secrets.NewManager(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Secret Manager client")
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Secret Manager client")
		}
	}()

	syncer := secrets.NewSyncer(manager, log.Logger)
	summary, err := syncer.SyncFile(ctx, envFile)
	if err != nil {
		log.Fatal().Err(err).Str("env_file", envFile).Msg("Secret sync failed")
	}
	if summary.Failed() {
		os.Exit(1)
	}
}

func runFetch(ctx context.Context, cfg *config.Infra, descriptorPath string) {
	d, err := descriptor.Load(descriptorPath)
	if err != nil {
		log.Fatal().Err(err).Str("descriptor", descriptorPath).Msg("Failed to load descriptor")
	}

	manager, err := secrets.NewManager(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Secret Manager client")
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Secret Manager client")
		}
	}()

	fetcher := secrets.NewFetcher(manager, log.Logger)
	summary := fetcher.Fetch(ctx, d, os.Stdout)
	if summary.Failed() {
		os.Exit(1)
	}
}

package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultRepository  = "agents"
	defaultSQLInstance = "agents-db"
	defaultGcloud      = "gcloud"
)

// LoadInfra loads the infrastructure configuration. The config file path and
// the override flags are read from the viper instance the caller bound its
// pflags into.
func LoadInfra(logger zerolog.Logger, v *viper.Viper) (*Infra, error) {
	configPath := v.GetString("config")

	cfg := &Infra{}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("config_path", configPath).Msg("Infrastructure config file not found, relying on flags and defaults.")
		} else {
			return nil, fmt.Errorf("failed to read infrastructure config %s: %w", configPath, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal infrastructure config from %s: %w", configPath, err)
		}
		logger.Info().Str("config_path", configPath).Msg("Infrastructure config file loaded.")
	}

	// Flags win over the file.
	if projectID := v.GetString("project-id"); projectID != "" {
		cfg.ProjectID = projectID
	}
	if region := v.GetString("region"); region != "" {
		cfg.Region = region
	}

	if cfg.Repository == "" {
		cfg.Repository = defaultRepository
	}
	if cfg.SQLInstance == "" {
		cfg.SQLInstance = defaultSQLInstance
	}
	if cfg.GcloudBinary == "" {
		cfg.GcloudBinary = defaultGcloud
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Registry == "" {
		cfg.Registry = fmt.Sprintf("%s-docker.pkg.dev/%s/%s", cfg.Region, cfg.ProjectID, cfg.Repository)
		logger.Info().Str("project_id", cfg.ProjectID).Str("registry", cfg.Registry).Msg("Registry dynamically set from region, project and repository.")
	}

	return cfg, nil
}

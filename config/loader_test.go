package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadInfraFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infra.yaml")
	content := `
project_id: agents-prod
region: europe-west1
artifact_repository: conversational-agents
sql_instance: agents-db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	v.Set("config", path)

	cfg, err := LoadInfra(zerolog.Nop(), v)
	require.NoError(t, err)

	assert.Equal(t, "agents-prod", cfg.ProjectID)
	assert.Equal(t, "europe-west1", cfg.Region)
	assert.Equal(t, "europe-west1-docker.pkg.dev/agents-prod/conversational-agents", cfg.Registry)
	assert.Equal(t, "agents-prod:europe-west1:agents-db", cfg.SQLInstanceConnectionName())
	assert.Equal(t, "gcloud", cfg.GcloudBinary)
}

func TestLoadInfraFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infra.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_id: from-file\nregion: us-central1\n"), 0o644))

	v := viper.New()
	v.Set("config", path)
	v.Set("project-id", "from-flag")

	cfg, err := LoadInfra(zerolog.Nop(), v)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.ProjectID)
	assert.Equal(t, "us-central1", cfg.Region)
}

func TestLoadInfraMissingFileUsesFlags(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))
	v.Set("project-id", "agents-prod")
	v.Set("region", "europe-west1")

	cfg, err := LoadInfra(zerolog.Nop(), v)
	require.NoError(t, err)
	assert.Equal(t, "agents-prod", cfg.ProjectID)
	assert.Equal(t, "agents", cfg.Repository)
	assert.Equal(t, "agents-db", cfg.SQLInstance)
}

func TestLoadInfraRequiresProjectAndRegion(t *testing.T) {
	v := viper.New()
	v.Set("config", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadInfra(zerolog.Nop(), v)
	require.Error(t, err)

	v.Set("project-id", "agents-prod")
	_, err = LoadInfra(zerolog.Nop(), v)
	require.Error(t, err)
}

func TestImageFor(t *testing.T) {
	cfg := &Infra{Registry: "europe-west1-docker.pkg.dev/agents-prod/agents"}
	assert.Equal(t, "europe-west1-docker.pkg.dev/agents-prod/agents/agent-svc:latest", cfg.ImageFor("agent-svc"))
}

package gcloudcmd

import (
	"strings"
	"testing"

	"github.com/illmade-knight/agent-deployer/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRequest() *DeployRequest {
	return &DeployRequest{
		Service:          "agent-svc",
		Image:            "europe-west1-docker.pkg.dev/agents-prod/agents/agent-svc:latest",
		Project:          "agents-prod",
		Region:           "europe-west1",
		CloudSQLInstance: "agents-prod:europe-west1:agents-db",
		CPUBoost:         true,
		EnvVars: []EnvVar{
			{Name: "GOOGLE_CLOUD_PROJECT", Value: "agents-prod"},
			{Name: "DB_USER", Value: "agent"},
		},
		Secrets: []SecretBinding{
			{Name: "DB_PASSWORD", Secret: "agent-db-password", Version: "latest"},
		},
	}
}

func TestArgsFixedArguments(t *testing.T) {
	args, err := baseRequest().Args()
	require.NoError(t, err)

	assert.Equal(t, []string{"run", "deploy", "agent-svc"}, args[:3])
	assert.Contains(t, args, "--image=europe-west1-docker.pkg.dev/agents-prod/agents/agent-svc:latest")
	assert.Contains(t, args, "--platform=managed")
	assert.Contains(t, args, "--project=agents-prod")
	assert.Contains(t, args, "--region=europe-west1")
	assert.Contains(t, args, "--add-cloudsql-instances=agents-prod:europe-west1:agents-db")
	assert.Contains(t, args, "--cpu-boost")
}

func TestArgsEnvAndSecretFlags(t *testing.T) {
	args, err := baseRequest().Args()
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "--set-env-vars=")
	assert.Contains(t, joined, "DB_USER=agent")
	assert.Contains(t, args, "--set-secrets=DB_PASSWORD=agent-db-password:latest")
}

func TestArgsAuthAndTrafficFlags(t *testing.T) {
	t.Run("private by default", func(t *testing.T) {
		args, err := baseRequest().Args()
		require.NoError(t, err)
		assert.NotContains(t, args, "--allow-unauthenticated")
		assert.NotContains(t, args, "--no-traffic")
	})

	t.Run("public service", func(t *testing.T) {
		req := baseRequest()
		req.AllowUnauthenticated = true
		args, err := req.Args()
		require.NoError(t, err)
		assert.Contains(t, args, "--allow-unauthenticated")
	})

	t.Run("no traffic", func(t *testing.T) {
		req := baseRequest()
		req.NoTraffic = true
		args, err := req.Args()
		require.NoError(t, err)
		assert.Contains(t, args, "--no-traffic")
	})
}

func TestArgsSecretsFlagOmittedWhenEmpty(t *testing.T) {
	req := baseRequest()
	req.Secrets = nil
	args, err := req.Args()
	require.NoError(t, err)

	for _, a := range args {
		assert.False(t, strings.HasPrefix(a, "--set-secrets"), "unexpected flag %q", a)
	}
}

func TestArgsServiceAccount(t *testing.T) {
	req := baseRequest()
	req.ServiceAccount = "agent-runner@agents-prod.iam.gserviceaccount.com"
	args, err := req.Args()
	require.NoError(t, err)
	assert.Contains(t, args, "--service-account=agent-runner@agents-prod.iam.gserviceaccount.com")
}

func TestArgsEmptyServiceNameFails(t *testing.T) {
	req := baseRequest()
	req.Service = ""
	_, err := req.Args()
	require.Error(t, err)
	assert.ErrorIs(t, err, descriptor.ErrValidation)
}

func TestStringIsShellQuoted(t *testing.T) {
	req := baseRequest()
	req.EnvVars = append(req.EnvVars, EnvVar{Name: "GREETING", Value: "hello world"})
	rendered := req.String()

	assert.True(t, strings.HasPrefix(rendered, "gcloud run deploy agent-svc "), rendered)
	// The env list contains a space, so its flag must come out quoted.
	assert.Contains(t, rendered, "'--set-env-vars=")
}

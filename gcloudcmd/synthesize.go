package gcloudcmd

import (
	"github.com/illmade-knight/agent-deployer/config"
	"github.com/illmade-knight/agent-deployer/descriptor"
)

// deployedEnvironment is injected into every revision; the agents switch
// their database wiring on it.
const deployedEnvironment = "production"

// Synthesize resolves a descriptor against the infrastructure configuration
// into a deploy request. It performs no I/O; a failed validation here means
// no external call was ever attempted.
func Synthesize(d *descriptor.Descriptor, cfg *config.Infra) (*DeployRequest, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	connectionName := cfg.SQLInstanceConnectionName()
	req := &DeployRequest{
		Service:              d.ServiceName,
		Image:                cfg.ImageFor(d.ServiceName),
		Project:              cfg.ProjectID,
		Region:               cfg.Region,
		ServiceAccount:       d.ServiceAccount,
		CloudSQLInstance:     connectionName,
		CPUBoost:             true,
		AllowUnauthenticated: d.AllowUnauthenticated,
		NoTraffic:            d.NoTraffic,
		// The platform-supplied variables come first, then the descriptor's
		// literals in declared order.
		EnvVars: []EnvVar{
			{Name: "GOOGLE_CLOUD_PROJECT", Value: cfg.ProjectID},
			{Name: "GOOGLE_CLOUD_LOCATION", Value: cfg.Region},
			{Name: "ENVIRONMENT", Value: deployedEnvironment},
			{Name: "DB_INSTANCE_CONNECTION_NAME", Value: connectionName},
		},
	}

	for _, b := range d.EnvVars {
		switch b.Classify() {
		case descriptor.KindLiteral:
			req.EnvVars = append(req.EnvVars, EnvVar{Name: b.Name, Value: *b.Value})
		case descriptor.KindSecretRef:
			req.Secrets = append(req.Secrets, SecretBinding{
				Name:    b.Name,
				Secret:  b.Secret,
				Version: b.SecretVersion(),
			})
		case descriptor.KindReserved, descriptor.KindInert:
			// Reserved names are injected above; inert bindings contribute
			// nothing by definition.
		}
	}

	return req, nil
}

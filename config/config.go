// Package config holds the fixed infrastructure settings the deployer needs:
// project, region, Artifact Registry repository and the shared Cloud SQL
// instance every agent attaches to.
package config

import "fmt"

// Infra is the infrastructure configuration for a deployment run. It is
// loaded from a YAML file and can be overridden by command-line flags; it
// never comes from ambient gcloud state.
type Infra struct {
	ProjectID string `yaml:"project_id,omitempty"`
	Region    string `yaml:"region,omitempty"`

	// Repository is the Artifact Registry repository holding the agent images.
	Repository string `yaml:"artifact_repository,omitempty"`
	// Registry is the full registry prefix for images. Usually left empty and
	// derived from the region, project and repository.
	Registry string `yaml:"registry,omitempty"`

	// SQLInstance is the name of the shared Cloud SQL instance the agents
	// attach to. The instance connection name is computed, not configured.
	SQLInstance string `yaml:"sql_instance,omitempty"`

	// GcloudBinary overrides the gcloud executable used for deploys.
	GcloudBinary string `yaml:"gcloud_binary,omitempty"`
}

// Validate checks that the settings every action depends on are present.
func (c *Infra) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required (set it in the config file or pass --project-id)")
	}
	if c.Region == "" {
		return fmt.Errorf("region is required (set it in the config file or pass --region)")
	}
	return nil
}

// SQLInstanceConnectionName returns the Cloud SQL connection name in the
// project:region:instance form the deploy flag and the agents both expect.
func (c *Infra) SQLInstanceConnectionName() string {
	return fmt.Sprintf("%s:%s:%s", c.ProjectID, c.Region, c.SQLInstance)
}

// ImageFor returns the fully qualified image reference for a service.
func (c *Infra) ImageFor(serviceName string) string {
	return fmt.Sprintf("%s/%s:latest", c.Registry, serviceName)
}

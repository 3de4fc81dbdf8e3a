// Package gcloudcmd turns a deployment descriptor into a typed gcloud
// invocation. The request object holds named fields; serialization to an
// argument vector happens once, at the process boundary, so nothing in the
// rest of the deployer concatenates command strings.
package gcloudcmd

import (
	"fmt"
	"strings"

	"github.com/illmade-knight/agent-deployer/descriptor"
)

// EnvVar is one plain environment variable for the deployed revision.
type EnvVar struct {
	Name  string
	Value string
}

// SecretBinding maps an environment variable onto a secret store entry.
type SecretBinding struct {
	Name    string
	Secret  string
	Version string
}

// Ref renders the secret:version form gcloud expects.
func (s SecretBinding) Ref() string {
	return s.Secret + ":" + s.Version
}

// DeployRequest is the structured model of one `gcloud run deploy` call.
type DeployRequest struct {
	Service        string
	Image          string
	Project        string
	Region         string
	ServiceAccount string

	// EnvVars and Secrets keep declared order; both serialize into a single
	// list flag each.
	EnvVars []EnvVar
	Secrets []SecretBinding

	// CloudSQLInstance is the project:region:instance connection name the
	// revision attaches to.
	CloudSQLInstance string

	AllowUnauthenticated bool
	NoTraffic            bool
	CPUBoost             bool
}

// Args serializes the request into the gcloud argument vector. It fails with
// the descriptor validation sentinel when the service name is empty, before
// any external call could be attempted.
func (r *DeployRequest) Args() ([]string, error) {
	if strings.TrimSpace(r.Service) == "" {
		return nil, fmt.Errorf("%w: deploy request has no service name", descriptor.ErrValidation)
	}

	args := []string{
		"run", "deploy", r.Service,
		"--image=" + r.Image,
		"--platform=managed",
		"--project=" + r.Project,
		"--region=" + r.Region,
	}

	if r.CloudSQLInstance != "" {
		args = append(args, "--add-cloudsql-instances="+r.CloudSQLInstance)
	}
	if r.CPUBoost {
		args = append(args, "--cpu-boost")
	}
	if r.ServiceAccount != "" {
		args = append(args, "--service-account="+r.ServiceAccount)
	}
	if len(r.EnvVars) > 0 {
		args = append(args, "--set-env-vars="+EncodeKVList(r.EnvVars))
	}
	if len(r.Secrets) > 0 {
		refs := make([]string, len(r.Secrets))
		for i, s := range r.Secrets {
			refs[i] = s.Name + "=" + s.Ref()
		}
		args = append(args, "--set-secrets="+strings.Join(refs, ","))
	}
	if r.AllowUnauthenticated {
		// Cloud Run's default is private; the flag only appears for public
		// services so the absence of a decision stays safe.
		args = append(args, "--allow-unauthenticated")
	}
	if r.NoTraffic {
		args = append(args, "--no-traffic")
	}

	return args, nil
}

// String renders the full command line with each argument shell-quoted. This
// is what gets echoed before execution; the exec path uses Args directly and
// never re-parses it.
func (r *DeployRequest) String() string {
	args, err := r.Args()
	if err != nil {
		return "gcloud <invalid deploy request: " + err.Error() + ">"
	}
	quoted := make([]string, len(args)+1)
	quoted[0] = "gcloud"
	for i, a := range args {
		quoted[i+1] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

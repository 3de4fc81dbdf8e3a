// Package cloudrun wraps the Cloud Run Admin API surface the deployer needs
// after the deploy command itself has run: reading the service back and
// managing its invoker IAM policy.
package cloudrun

import (
	"context"
	"fmt"

	"cloud.google.com/go/iam/apiv1/iampb"
	run "cloud.google.com/go/run/apiv2"
	runpb "cloud.google.com/go/run/apiv2/runpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/illmade-knight/agent-deployer/config"
)

// servicesAPI is the subset of *run.ServicesClient the client uses. It is an
// interface so tests can substitute a fake without a live API.
type servicesAPI interface {
	GetService(ctx context.Context, req *runpb.GetServiceRequest, opts ...gax.CallOption) (*runpb.Service, error)
	GetIamPolicy(ctx context.Context, req *iampb.GetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	SetIamPolicy(ctx context.Context, req *iampb.SetIamPolicyRequest, opts ...gax.CallOption) (*iampb.Policy, error)
	Close() error
}

// Client provides post-deploy operations against Cloud Run services.
type Client struct {
	api    servicesAPI
	cfg    *config.Infra
	logger zerolog.Logger
}

// NewClient creates a Cloud Run client for the configured project and region.
func NewClient(ctx context.Context, cfg *config.Infra, logger zerolog.Logger, opts ...option.ClientOption) (*Client, error) {
	runClient, err := run.NewServicesClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Run services client: %w", err)
	}
	return newClientWithAPI(runClient, cfg, logger), nil
}

func newClientWithAPI(api servicesAPI, cfg *config.Infra, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		cfg:    cfg,
		logger: logger.With().Str("component", "CloudRunClient").Logger(),
	}
}

// Close closes the underlying API client.
func (c *Client) Close() error {
	return c.api.Close()
}

func (c *Client) serviceResource(serviceName string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", c.cfg.ProjectID, c.cfg.Region, serviceName)
}

// ServiceURL retrieves the current URL of a deployed service.
func (c *Client) ServiceURL(ctx context.Context, serviceName string) (string, error) {
	resp, err := c.api.GetService(ctx, &runpb.GetServiceRequest{
		Name: c.serviceResource(serviceName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get Cloud Run service '%s': %w", serviceName, err)
	}
	if resp.Uri == "" {
		return "", fmt.Errorf("service '%s' has no URI; the deploy may still be rolling out", serviceName)
	}
	return resp.Uri, nil
}

// Package secrets moves values between the local environment, the deployment
// descriptors and Google Secret Manager: sync pushes env-file pairs into the
// store, fetch pulls a descriptor's secret references back out as shell
// exports.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store is the secret store surface sync and fetch run against.
type Store interface {
	Exists(ctx context.Context, secretID string) (bool, error)
	Create(ctx context.Context, secretID string) error
	AddVersion(ctx context.Context, secretID string, payload []byte) error
	Access(ctx context.Context, secretID, version string) ([]byte, error)
}

// Manager implements Store against Secret Manager. The project is an
// explicit constructor argument; it is never read from ambient gcloud
// configuration.
type Manager struct {
	client    *secretmanager.Client
	projectID string
}

// NewManager creates a Secret Manager backed store for the given project.
func NewManager(ctx context.Context, projectID string, opts ...option.ClientOption) (*Manager, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required for the secret store")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &Manager{client: client, projectID: projectID}, nil
}

// Close closes the underlying client.
func (m *Manager) Close() error {
	return m.client.Close()
}

func (m *Manager) secretResource(secretID string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", m.projectID, secretID)
}

// Exists reports whether the secret container exists, regardless of whether
// it holds any versions.
func (m *Manager) Exists(ctx context.Context, secretID string) (bool, error) {
	_, err := m.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: m.secretResource(secretID),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check secret '%s': %w", secretID, err)
	}
	return true, nil
}

// Create creates the secret container with automatic replication. Values are
// added separately as versions.
func (m *Manager) Create(ctx context.Context, secretID string) error {
	_, err := m.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + m.projectID,
		SecretId: secretID,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create secret '%s': %w", secretID, err)
	}
	return nil
}

// AddVersion appends a new version holding payload. An empty payload is a
// valid version.
func (m *Manager) AddVersion(ctx context.Context, secretID string, payload []byte) error {
	_, err := m.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  m.secretResource(secretID),
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	})
	if err != nil {
		return fmt.Errorf("failed to add version to secret '%s': %w", secretID, err)
	}
	return nil
}

// Access fetches the payload of one secret version.
func (m *Manager) Access(ctx context.Context, secretID, version string) ([]byte, error) {
	name := fmt.Sprintf("%s/versions/%s", m.secretResource(secretID), version)
	result, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret '%s' version '%s': %w", secretID, version, err)
	}
	return result.Payload.Data, nil
}

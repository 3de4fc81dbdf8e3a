package cloudrun

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/iam/apiv1/iampb"
	runpb "cloud.google.com/go/run/apiv2/runpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/agent-deployer/config"
	"github.com/illmade-knight/agent-deployer/descriptor"
)

// fakeServicesAPI implements servicesAPI in memory.
type fakeServicesAPI struct {
	policy *iampb.Policy
	uri    string

	getPolicyCalls int
	setPolicyCalls int

	// failSetFor makes SetIamPolicy fail while the named member is the one
	// being added, to exercise the warn-and-continue path.
	failSetFor map[string]error
}

func newFakeServicesAPI() *fakeServicesAPI {
	return &fakeServicesAPI{
		policy:     &iampb.Policy{},
		uri:        "https://agent-svc-abc123-ew.a.run.app",
		failSetFor: map[string]error{},
	}
}

func (f *fakeServicesAPI) GetService(_ context.Context, _ *runpb.GetServiceRequest, _ ...gax.CallOption) (*runpb.Service, error) {
	return &runpb.Service{Uri: f.uri}, nil
}

func (f *fakeServicesAPI) GetIamPolicy(_ context.Context, _ *iampb.GetIamPolicyRequest, _ ...gax.CallOption) (*iampb.Policy, error) {
	f.getPolicyCalls++
	// Hand out a shallow copy so a failed set does not mutate stored state.
	cp := &iampb.Policy{}
	for _, b := range f.policy.Bindings {
		members := append([]string{}, b.Members...)
		cp.Bindings = append(cp.Bindings, &iampb.Binding{Role: b.Role, Members: members})
	}
	return cp, nil
}

func (f *fakeServicesAPI) SetIamPolicy(_ context.Context, req *iampb.SetIamPolicyRequest, _ ...gax.CallOption) (*iampb.Policy, error) {
	f.setPolicyCalls++
	for member, err := range f.failSetFor {
		if policyContains(req.Policy, InvokerRole, member) {
			delete(f.failSetFor, member)
			return nil, err
		}
	}
	f.policy = req.Policy
	return f.policy, nil
}

func (f *fakeServicesAPI) Close() error { return nil }

func policyContains(p *iampb.Policy, role, member string) bool {
	for _, b := range p.Bindings {
		if b.Role != role {
			continue
		}
		for _, m := range b.Members {
			if m == member {
				return true
			}
		}
	}
	return false
}

func testClient(api servicesAPI) *Client {
	cfg := &config.Infra{ProjectID: "agents-prod", Region: "europe-west1"}
	return newClientWithAPI(api, cfg, zerolog.Nop())
}

func TestGrantInvokersPublicServiceIsNoOp(t *testing.T) {
	api := newFakeServicesAPI()
	c := testClient(api)

	res := c.GrantInvokers(context.Background(), &descriptor.Descriptor{
		ServiceName:          "agent-svc",
		AllowUnauthenticated: true,
		Invokers:             []string{"user:a@example.com"},
	})

	assert.Zero(t, res.Granted)
	assert.Zero(t, res.Failed)
	assert.Zero(t, api.getPolicyCalls, "public service must not touch IAM")
}

func TestGrantInvokersPrivateEmptyListIsNoOp(t *testing.T) {
	api := newFakeServicesAPI()
	c := testClient(api)

	res := c.GrantInvokers(context.Background(), &descriptor.Descriptor{
		ServiceName: "agent-svc",
	})

	assert.Zero(t, res.Granted)
	assert.Zero(t, res.Failed)
	assert.Zero(t, api.setPolicyCalls)
}

func TestGrantInvokersGrantsEachPrincipal(t *testing.T) {
	api := newFakeServicesAPI()
	c := testClient(api)

	res := c.GrantInvokers(context.Background(), &descriptor.Descriptor{
		ServiceName: "agent-svc",
		Invokers:    []string{"user:a@example.com", "serviceAccount:ci@agents-prod.iam.gserviceaccount.com"},
	})

	assert.Equal(t, 2, res.Granted)
	assert.Zero(t, res.Failed)
	assert.True(t, policyContains(api.policy, InvokerRole, "user:a@example.com"))
	assert.True(t, policyContains(api.policy, InvokerRole, "serviceAccount:ci@agents-prod.iam.gserviceaccount.com"))
}

func TestGrantInvokersPartialFailureContinues(t *testing.T) {
	api := newFakeServicesAPI()
	api.failSetFor["user:bad@example.com"] = errors.New("permission denied")
	c := testClient(api)

	res := c.GrantInvokers(context.Background(), &descriptor.Descriptor{
		ServiceName: "agent-svc",
		Invokers:    []string{"user:bad@example.com", "user:good@example.com"},
	})

	assert.Equal(t, 1, res.Granted)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, policyContains(api.policy, InvokerRole, "user:bad@example.com"))
	assert.True(t, policyContains(api.policy, InvokerRole, "user:good@example.com"))
}

func TestGrantInvokersIdempotent(t *testing.T) {
	api := newFakeServicesAPI()
	api.policy = &iampb.Policy{Bindings: []*iampb.Binding{
		{Role: InvokerRole, Members: []string{"user:a@example.com"}},
	}}
	c := testClient(api)

	res := c.GrantInvokers(context.Background(), &descriptor.Descriptor{
		ServiceName: "agent-svc",
		Invokers:    []string{"user:a@example.com"},
	})

	assert.Equal(t, 1, res.Granted)
	assert.Zero(t, api.setPolicyCalls, "existing member must not trigger a policy write")
}

func TestServiceURL(t *testing.T) {
	api := newFakeServicesAPI()
	c := testClient(api)

	url, err := c.ServiceURL(context.Background(), "agent-svc")
	require.NoError(t, err)
	assert.Equal(t, "https://agent-svc-abc123-ew.a.run.app", url)
}

func TestServiceURLEmptyURI(t *testing.T) {
	api := newFakeServicesAPI()
	api.uri = ""
	c := testClient(api)

	_, err := c.ServiceURL(context.Background(), "agent-svc")
	require.Error(t, err)
}

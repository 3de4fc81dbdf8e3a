package cloudrun

import (
	"context"
	"fmt"

	"cloud.google.com/go/iam/apiv1/iampb"

	"github.com/illmade-knight/agent-deployer/descriptor"
)

// InvokerRole is granted to every declared invoker of a private service.
const InvokerRole = "roles/run.invoker"

// InvokerResult reports the outcome of a grant pass. Failures are warnings,
// not errors: a partially granted service is an accepted terminal state.
type InvokerResult struct {
	Granted int
	Failed  int
}

// GrantInvokers applies the descriptor's invoker list to the deployed
// service. A public service needs no grants and gets none. For a private
// service each principal is one independent grant call; a failure is logged
// and counted but never stops the remaining principals.
func (c *Client) GrantInvokers(ctx context.Context, d *descriptor.Descriptor) InvokerResult {
	logger := c.logger.With().Str("service_name", d.ServiceName).Logger()

	if d.AllowUnauthenticated {
		logger.Info().Msg("Service is public; skipping invoker grants.")
		return InvokerResult{}
	}
	if len(d.Invokers) == 0 {
		logger.Info().Msg("Private service declares no invokers; nothing to grant.")
		return InvokerResult{}
	}

	resource := c.serviceResource(d.ServiceName)
	var result InvokerResult
	for _, member := range d.Invokers {
		logger.Info().Str("member", member).Str("role", InvokerRole).Msg("Granting invoker role...")
		if err := c.grantInvoker(ctx, resource, member); err != nil {
			logger.Warn().Err(err).Str("member", member).Msg("Failed to grant invoker role. Continuing with remaining invokers.")
			result.Failed++
			continue
		}
		logger.Info().Str("member", member).Msg("Invoker role granted.")
		result.Granted++
	}

	logger.Info().Int("granted", result.Granted).Int("failed", result.Failed).Msg("Invoker grant pass complete.")
	return result
}

// grantInvoker performs one get-modify-set cycle for a single member so each
// grant stays independent of the others.
func (c *Client) grantInvoker(ctx context.Context, resource, member string) error {
	policy, err := c.api.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: resource})
	if err != nil {
		return fmt.Errorf("failed to get IAM policy for %s: %w", resource, err)
	}

	if !addBinding(policy, InvokerRole, member) {
		// Already present; nothing to write.
		return nil
	}

	if _, err := c.api.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{
		Resource: resource,
		Policy:   policy,
	}); err != nil {
		return fmt.Errorf("failed to set IAM policy for %s: %w", resource, err)
	}
	return nil
}

// addBinding adds member to the role's binding, creating the binding if
// needed. It reports whether the policy changed.
func addBinding(policy *iampb.Policy, role, member string) bool {
	for _, b := range policy.Bindings {
		if b.Role != role {
			continue
		}
		for _, m := range b.Members {
			if m == member {
				return false
			}
		}
		b.Members = append(b.Members, member)
		return true
	}
	policy.Bindings = append(policy.Bindings, &iampb.Binding{
		Role:    role,
		Members: []string{member},
	})
	return true
}

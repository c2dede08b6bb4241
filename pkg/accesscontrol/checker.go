package accesscontrol

import (
	"context"
	"strings"
)

// DefaultChecker is the default Checker: bearer JWT or service-account API
// key resolves a subject/role, then an OPA policy decides allow/deny. This
// is the concrete adapter the HTTP Protocol Surface wires in place of
// implementing auth itself.
type DefaultChecker struct {
	JWT      *JWTAuthenticator
	Accounts *ServiceAccounts
	Policy   *PolicyEngine
	Realm    string
	Service  string
}

// CheckRequest resolves the Authorization header of r to a Subject, either
// via JWT or a service-account API key presented as a bearer token.
func (c *DefaultChecker) CheckRequest(ctx context.Context, authHeader string) (Subject, bool) {
	if subj, ok := c.JWT.Authenticate(ctx, authHeader); ok {
		return subj, true
	}

	if strings.HasPrefix(authHeader, "Bearer rx_") {
		key := strings.TrimPrefix(authHeader, "Bearer ")
		if name, ok := c.Accounts.Verify(ctx, key); ok {
			return Subject{Name: name, Role: "service-account"}, true
		}
	}

	return Subject{}, false
}

// Check implements the Checker interface for a subject known only by name:
// the role is left empty, so role-based policy rules do not match. The HTTP
// surface instead calls CheckSubject with the full Subject that Middleware
// resolved via CheckRequest.
func (c *DefaultChecker) Check(ctx context.Context, subject, repository string, action Action) (Decision, error) {
	return c.CheckSubject(ctx, Subject{Name: subject}, repository, action)
}

// CheckSubject evaluates the policy for an already-authenticated subject.
func (c *DefaultChecker) CheckSubject(ctx context.Context, subj Subject, repository string, action Action) (Decision, error) {
	allowed, _, err := c.Policy.Evaluate(ctx, EvaluationInput{
		Subject:    subj.Name,
		Role:       subj.Role,
		Repository: repository,
		Action:     string(action),
	})
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: allowed}, nil
}

// Unauthenticated builds the Decision the HTTP surface maps to a 401 with
// a Www-Authenticate challenge.
func (c *DefaultChecker) Unauthenticated() Decision {
	return Decision{Allowed: false, Unauthenticated: true, Challenge: c.JWT.Challenge(c.Realm, c.Service)}
}

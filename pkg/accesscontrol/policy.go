package accesscontrol

import (
	"context"
	"fmt"
	"sync"

	"github.com/open-policy-agent/opa/rego"
)

// PolicyEngine evaluates a Rego policy to decide whether (subject,
// repository, action) is allowed, generalized from the donor's
// policy.Service (which only ever evaluated a pull-time vulnerability/
// signature gate) to the general access-check shape the core needs.
type PolicyEngine struct {
	mu            sync.RWMutex
	currentPolicy string
}

// NewPolicyEngine builds a PolicyEngine with a default-allow policy that
// denies writes from the "readonly" role, all access to the "banned"
// role, and deletes from any role other than "admin", matching the shape (default allow, explicit violations) of the
// donor's default Rego module.
func NewPolicyEngine() *PolicyEngine {
	defaultPolicy := `
		package registryx.access

		default allow = true

		violations[msg] {
			input.role == "banned"
			msg := sprintf("subject %v is banned", [input.subject])
		}

		violations[msg] {
			input.action == "write"
			input.role == "readonly"
			msg := sprintf("role %v may not write to %v", [input.role, input.repository])
		}

		violations[msg] {
			input.action == "delete"
			input.role != "admin"
			msg := "only admin may delete"
		}

		allow = false {
			count(violations) > 0
		}
	`
	return &PolicyEngine{currentPolicy: defaultPolicy}
}

func (p *PolicyEngine) GetPolicy() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentPolicy
}

// UpdatePolicy replaces the active policy after validating it compiles.
func (p *PolicyEngine) UpdatePolicy(policy string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := rego.New(
		rego.Query("data.registryx.access.allow"),
		rego.Module("access.rego", policy),
	).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("invalid policy syntax: %w", err)
	}
	p.currentPolicy = policy
	return nil
}

// EvaluationInput is what's fed into the Rego query.
type EvaluationInput struct {
	Subject    string `json:"subject"`
	Role       string `json:"role"`
	Repository string `json:"repository"`
	Action     string `json:"action"`
}

// Evaluate runs the allow query (and, on denial, the violations query for
// diagnostics) against the current policy.
func (p *PolicyEngine) Evaluate(ctx context.Context, input EvaluationInput) (bool, []string, error) {
	p.mu.RLock()
	policyStr := p.currentPolicy
	p.mu.RUnlock()

	query, err := rego.New(
		rego.Query("data.registryx.access.allow"),
		rego.Module("access.rego", policyStr),
	).PrepareForEval(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	results, err := query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, nil, fmt.Errorf("failed to eval rego: %w", err)
	}
	if len(results) == 0 {
		return false, nil, fmt.Errorf("undefined result")
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, nil, fmt.Errorf("unexpected result type")
	}

	var violations []string
	if !allowed {
		vQuery, err := rego.New(
			rego.Query("data.registryx.access.violations"),
			rego.Module("access.rego", policyStr),
		).PrepareForEval(ctx)
		if err == nil {
			if vRes, err := vQuery.Eval(ctx, rego.EvalInput(input)); err == nil && len(vRes) > 0 {
				if msgs, ok := vRes[0].Expressions[0].Value.([]interface{}); ok {
					for _, m := range msgs {
						violations = append(violations, fmt.Sprint(m))
					}
				}
			}
		}
	}

	return allowed, violations, nil
}

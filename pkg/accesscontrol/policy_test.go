package accesscontrol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyEngineDefaultAllowsRead(t *testing.T) {
	p := NewPolicyEngine()
	allowed, violations, err := p.Evaluate(context.Background(), EvaluationInput{
		Subject: "alice", Role: "member", Repository: "library/ubuntu", Action: "read",
	})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, violations)
}

func TestPolicyEngineDeniesReadonlyWrite(t *testing.T) {
	p := NewPolicyEngine()
	allowed, violations, err := p.Evaluate(context.Background(), EvaluationInput{
		Subject: "bob", Role: "readonly", Repository: "library/ubuntu", Action: "write",
	})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.NotEmpty(t, violations)
}

func TestPolicyEngineDeniesBannedSubject(t *testing.T) {
	p := NewPolicyEngine()
	allowed, _, err := p.Evaluate(context.Background(), EvaluationInput{
		Subject: "evil", Role: "banned", Repository: "library/ubuntu", Action: "read",
	})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestPolicyEngineUpdatePolicyRejectsInvalidSyntax(t *testing.T) {
	p := NewPolicyEngine()
	err := p.UpdatePolicy("not valid rego {{{")
	assert.Error(t, err)
}

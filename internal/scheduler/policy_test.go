package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{
		"":         PolicyAuto,
		"auto":     PolicyAuto,
		"flat":     PolicyFlat,
		"Sections": PolicySections,
		"fanout":   PolicyFanOut,
		"fan-out":  PolicyFanOut,
		"windowed": PolicyWindowed,
		" batched": PolicyWindowed,
	}
	for in, want := range tests {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("round-robin")
	assert.Error(t, err)
}

func TestPolicyString(t *testing.T) {
	for _, name := range PolicyNames {
		p, err := ParsePolicy(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}
	assert.Equal(t, "Policy(42)", Policy(42).String())
}

func TestPolicyResolve(t *testing.T) {
	assert.Equal(t, PolicySections, PolicyAuto.Resolve(10, 10))
	assert.Equal(t, PolicyWindowed, PolicyAuto.Resolve(11, 10))
	assert.Equal(t, PolicySections, PolicyAuto.Resolve(DefaultBatchSize, 0))
	assert.Equal(t, PolicyWindowed, PolicyAuto.Resolve(DefaultBatchSize+1, -1))
	assert.Equal(t, PolicyFlat, PolicyFlat.Resolve(1000, 1))
}

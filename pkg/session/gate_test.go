package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGate(t *testing.T) {
	var g gate
	assert.Equal(t, "OPEN", g.state.String())
	assert.NoError(t, g.admit(intentAuto))

	g.close()
	assert.Equal(t, "GATED", g.state.String())
	assert.ErrorIs(t, g.admit(intentAuto), ErrSuppressed)
	assert.NoError(t, g.admit(intentUser))

	g.open()
	assert.NoError(t, g.admit(intentAuto))
	assert.Equal(t, "user", intentUser.String())
	assert.Equal(t, "auto", intentAuto.String())
}

func TestGate_SealClosesOncePerPlan(t *testing.T) {
	var g gate
	g.seal()
	assert.Equal(t, GateGated, g.state)

	g.open()
	g.seal()
	assert.Equal(t, GateOpen, g.state)

	g.reset()
	g.seal()
	assert.Equal(t, GateGated, g.state)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenStateMachine(t *testing.T) {
	terminal := []TokenStatus{TokenCompleted, TokenCancelled, TokenExpired, TokenLost}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, TokenActive.CanTransitionTo(s), s)
		for _, next := range append(terminal, TokenActive) {
			assert.False(t, s.CanTransitionTo(next), "%s -> %s", s, next)
		}
	}
	assert.False(t, TokenActive.IsTerminal())
	assert.False(t, TokenActive.CanTransitionTo(TokenActive))
	assert.False(t, TokenStatus("PARKED").Valid())
}

func TestPricingModelValid(t *testing.T) {
	assert.True(t, PricingSlab.Valid())
	assert.False(t, PricingModel("DAILY").Valid())
}

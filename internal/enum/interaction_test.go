package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInteractionStatus_ForwardTransitionsAllowed(t *testing.T) {
	assert.True(t, InteractionStatusPending.CanTransitionTo(InteractionStatusQueued))
	assert.True(t, InteractionStatusQueued.CanTransitionTo(InteractionStatusSent))
	assert.True(t, InteractionStatusSent.CanTransitionTo(InteractionStatusDelivered))
	assert.True(t, InteractionStatusDelivered.CanTransitionTo(InteractionStatusRead))

	// Skipping intermediate states forward is still monotonic.
	assert.True(t, InteractionStatusPending.CanTransitionTo(InteractionStatusSent))
	assert.True(t, InteractionStatusQueued.CanTransitionTo(InteractionStatusRead))
}

func TestInteractionStatus_BackwardTransitionsRejected(t *testing.T) {
	assert.False(t, InteractionStatusQueued.CanTransitionTo(InteractionStatusPending))
	assert.False(t, InteractionStatusSent.CanTransitionTo(InteractionStatusQueued))
	assert.False(t, InteractionStatusDelivered.CanTransitionTo(InteractionStatusSent))
	assert.False(t, InteractionStatusSent.CanTransitionTo(InteractionStatusSent))
}

func TestInteractionStatus_FailedReachableFromAnyNonTerminalState(t *testing.T) {
	for _, status := range []InteractionStatus{
		InteractionStatusPending,
		InteractionStatusQueued,
		InteractionStatusSent,
		InteractionStatusDelivered,
	} {
		assert.True(t, status.CanTransitionTo(InteractionStatusFailed), "from %s", status)
	}
}

func TestInteractionStatus_TerminalStatesAllowNothing(t *testing.T) {
	for _, next := range []InteractionStatus{
		InteractionStatusPending,
		InteractionStatusQueued,
		InteractionStatusSent,
		InteractionStatusDelivered,
		InteractionStatusRead,
		InteractionStatusFailed,
	} {
		assert.False(t, InteractionStatusFailed.CanTransitionTo(next), "failed -> %s", next)
		assert.False(t, InteractionStatusRead.CanTransitionTo(next), "read -> %s", next)
	}
}

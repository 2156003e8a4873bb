package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailmax/warmup/internal/enum"
)

func TestInteraction_TransitionToStampsTimestamps(t *testing.T) {
	interaction := &Interaction{Status: enum.InteractionStatusPending}
	at := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	require.True(t, interaction.TransitionTo(enum.InteractionStatusQueued, at))
	require.True(t, interaction.TransitionTo(enum.InteractionStatusSent, at))
	assert.Equal(t, &at, interaction.SentAt)
	assert.Nil(t, interaction.DeliveredAt)

	require.True(t, interaction.TransitionTo(enum.InteractionStatusDelivered, at))
	assert.Equal(t, &at, interaction.DeliveredAt)
}

func TestInteraction_TransitionToRejectsBackwardMove(t *testing.T) {
	interaction := &Interaction{Status: enum.InteractionStatusSent}

	assert.False(t, interaction.TransitionTo(enum.InteractionStatusQueued, time.Now()))
	assert.Equal(t, enum.InteractionStatusSent, interaction.Status)
	assert.Nil(t, interaction.SentAt)
}

func TestInteraction_Succeeded(t *testing.T) {
	assert.False(t, (&Interaction{Status: enum.InteractionStatusPending}).Succeeded())
	assert.False(t, (&Interaction{Status: enum.InteractionStatusFailed}).Succeeded())
	assert.True(t, (&Interaction{Status: enum.InteractionStatusSent}).Succeeded())
	assert.True(t, (&Interaction{Status: enum.InteractionStatusRead}).Succeeded())
}

package models

import (
	"time"

	"github.com/emailmax/warmup/internal/enum"
)

// Interaction is one simulated message between two warmup accounts. Owned
// exclusively by the orchestrator's registry; status moves forward only.
type Interaction struct {
	ID              string                 `json:"id"`
	SourceAccountID string                 `json:"sourceAccountId"`
	TargetAccountID string                 `json:"targetAccountId"`
	Type            enum.InteractionType   `json:"type"`
	Status          enum.InteractionStatus `json:"status"`

	Subject string `json:"subject"`
	Content string `json:"content"`

	// MessageID is assigned at send time and used for delivery verification
	// against the recipient mailbox.
	MessageID string `json:"messageId"`

	CreatedAt   time.Time  `json:"createdAt"`
	SentAt      *time.Time `json:"sentAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	FailReason  string     `json:"failReason,omitempty"`
}

// TransitionTo advances the status if the lifecycle allows it and stamps the
// matching timestamp. Returns false for backward or terminal transitions.
func (i *Interaction) TransitionTo(status enum.InteractionStatus, at time.Time) bool {
	if !i.Status.CanTransitionTo(status) {
		return false
	}
	i.Status = status
	switch status {
	case enum.InteractionStatusSent:
		i.SentAt = &at
	case enum.InteractionStatusDelivered:
		i.DeliveredAt = &at
	case enum.InteractionStatusRead:
		i.ReadAt = &at
	case enum.InteractionStatusFailed:
		i.FailedAt = &at
	}
	return true
}

// Succeeded reports whether the interaction reached SENT or any later state.
func (i *Interaction) Succeeded() bool {
	switch i.Status {
	case enum.InteractionStatusSent, enum.InteractionStatusDelivered, enum.InteractionStatusRead:
		return true
	}
	return false
}

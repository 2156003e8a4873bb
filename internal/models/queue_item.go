package models

import (
	"time"

	"github.com/emailmax/warmup/internal/enum"
)

// QueueItem is one outbound dispatch job. Lower priority value means more
// urgent; sequence preserves FIFO order between equal priorities.
type QueueItem struct {
	ID            string           `json:"id"`
	AccountID     string           `json:"accountId"`
	InteractionID string           `json:"interactionId"`
	Message       *OutboundMessage `json:"message"`

	Priority int    `json:"priority"`
	Sequence uint64 `json:"-"`

	Attempts    int       `json:"attempts"`
	NotBefore   time.Time `json:"notBefore"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
	LastFailure string    `json:"lastFailure,omitempty"`
}

// DispatchResult reports how a queue item left the queue.
type DispatchResult struct {
	QueueID       string         `json:"queueId"`
	InteractionID string         `json:"interactionId"`
	State         enum.QueueItemState `json:"state"`
	Receipt       *SendReceipt   `json:"receipt,omitempty"`
	Err           error          `json:"-"`
	Attempts      int            `json:"attempts"`
}

// QueueStats is a read-only snapshot of queue state counts.
type QueueStats struct {
	Pending    int `json:"pending"`
	InFlight   int `json:"inFlight"`
	Sent       int `json:"sent"`
	DeadLetter int `json:"deadLetter"`
}

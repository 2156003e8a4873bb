package enum

type InteractionType string

const (
	InteractionInitialContact InteractionType = "initial_contact"
	InteractionFollowUp       InteractionType = "follow_up"
	InteractionReply          InteractionType = "reply"
)

func (t InteractionType) String() string {
	return string(t)
}

type InteractionStatus string

const (
	InteractionStatusPending   InteractionStatus = "pending"
	InteractionStatusQueued    InteractionStatus = "queued"
	InteractionStatusSent      InteractionStatus = "sent"
	InteractionStatusDelivered InteractionStatus = "delivered"
	InteractionStatusRead      InteractionStatus = "read"
	InteractionStatusFailed    InteractionStatus = "failed"
)

func (t InteractionStatus) String() string {
	return string(t)
}

var interactionStatusRank = map[InteractionStatus]int{
	InteractionStatusPending:   0,
	InteractionStatusQueued:    1,
	InteractionStatusSent:      2,
	InteractionStatusDelivered: 3,
	InteractionStatusRead:      4,
}

// CanTransitionTo enforces the monotonic lifecycle
// pending -> queued -> sent -> delivered -> read, with failed reachable from
// any non-terminal state. Failed and read are terminal.
func (t InteractionStatus) CanTransitionTo(next InteractionStatus) bool {
	if t == InteractionStatusFailed || t == InteractionStatusRead {
		return false
	}
	if next == InteractionStatusFailed {
		return true
	}
	currentRank, ok := interactionStatusRank[t]
	if !ok {
		return false
	}
	nextRank, ok := interactionStatusRank[next]
	if !ok {
		return false
	}
	return nextRank > currentRank
}

type SendingStrategy string

const (
	SendingSequential     SendingStrategy = "sequential"
	SendingParallel       SendingStrategy = "parallel"
	SendingRandomInterval SendingStrategy = "random_interval"
)

func (t SendingStrategy) String() string {
	return string(t)
}

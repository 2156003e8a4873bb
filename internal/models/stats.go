package models

import (
	"time"

	"github.com/emailmax/warmup/internal/enum"
)

// CrossSendConfig tunes one orchestrated batch. Zero value means sequential
// dispatch with the orchestrator's default pacing.
type CrossSendConfig struct {
	SendingStrategy  enum.SendingStrategy `json:"sendingStrategy"`
	TimeBetweenSends time.Duration        `json:"timeBetweenSends"`
	RandomizeContent bool                 `json:"randomizeContent"`
	// MaxParallel caps in-flight pairs for the parallel strategy.
	MaxParallel int `json:"maxParallel"`
	// MinInterval/MaxInterval bound the pause for the random interval strategy.
	MinInterval time.Duration `json:"minInterval"`
	MaxInterval time.Duration `json:"maxInterval"`
}

// CrossSendResult summarizes one PerformCrossSend call. Partial failures are
// reported here, never as a call-level error.
type CrossSendResult struct {
	TotalInteractions int            `json:"totalInteractions"`
	SuccessfulSends   int            `json:"successfulSends"`
	FailedSends       int            `json:"failedSends"`
	Interactions      []*Interaction `json:"interactions"`
}

// SenderRank is one entry of the top-senders leaderboard.
type SenderRank struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	SuccessCount int    `json:"successCount"`
}

// NetworkStatistics is a read-only snapshot of the warmup network.
type NetworkStatistics struct {
	TotalAccounts     int          `json:"totalAccounts"`
	TotalInteractions int          `json:"totalInteractions"`
	TopSenders        []SenderRank `json:"topSenders"`
}

// ValidationResult reports a per-protocol connection check for one account.
type ValidationResult struct {
	AccountID string           `json:"accountId"`
	Smtp      ProtocolCheck    `json:"smtp"`
	Imap      ProtocolCheck    `json:"imap"`
	Provider  enum.EmailProvider `json:"provider"`
}

type ProtocolCheck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

package orchestrator

import (
	"sort"

	"github.com/emailmax/warmup/internal/models"
)

const topSendersLimit = 10

// GetNetworkStatistics returns a snapshot of the warmup network: account and
// interaction totals plus a leaderboard of senders ranked by successful
// transmissions, descending, ties broken by account id ascending.
func (s *Service) GetNetworkStatistics() *models.NetworkStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successCounts := make(map[string]int)
	for _, interaction := range s.interactions {
		if interaction.Succeeded() {
			successCounts[interaction.SourceAccountID]++
		}
	}

	ranks := make([]models.SenderRank, 0, len(successCounts))
	for accountID, count := range successCounts {
		rank := models.SenderRank{AccountID: accountID, SuccessCount: count}
		if account, ok := s.accounts[accountID]; ok {
			rank.EmailAddress = account.EmailAddress
		}
		ranks = append(ranks, rank)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].SuccessCount != ranks[j].SuccessCount {
			return ranks[i].SuccessCount > ranks[j].SuccessCount
		}
		return ranks[i].AccountID < ranks[j].AccountID
	})
	if len(ranks) > topSendersLimit {
		ranks = ranks[:topSendersLimit]
	}

	return &models.NetworkStatistics{
		TotalAccounts:     len(s.accounts),
		TotalInteractions: len(s.interactions),
		TopSenders:        ranks,
	}
}

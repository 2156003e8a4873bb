package orchestrator

import (
	"time"

	"github.com/emailmax/warmup/internal/utils"
)

// CleanupOldInteractions drops every interaction created strictly before
// now minus maxAgeDays, regardless of status, and returns the exact count
// removed. Interactions within the window are untouched.
func (s *Service) CleanupOldInteractions(maxAgeDays int) int {
	cutoff := utils.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, interaction := range s.interactions {
		if interaction.CreatedAt.Before(cutoff) {
			delete(s.interactions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Infof("retention cleanup removed %d interaction(s) older than %d day(s)", removed, maxAgeDays)
	}
	return removed
}

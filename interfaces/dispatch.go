package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/models"
)

// TransmitFunc performs the actual wire transmission of one queue item. The
// orchestrator injects an SMTP-backed implementation; tests inject fakes.
type TransmitFunc func(ctx context.Context, item *models.QueueItem) (*models.SendReceipt, error)

// DispatchQueue decouples message production from transmission rate. Enqueue
// never blocks; ordering is priority ascending, FIFO within equal priority.
type DispatchQueue interface {
	Start(ctx context.Context)
	Enqueue(item *models.QueueItem) (string, error)
	Results() <-chan *models.DispatchResult
	Stats() models.QueueStats
	Clear() int
	Stop()
}

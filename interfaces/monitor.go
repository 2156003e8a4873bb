package interfaces

import (
	"context"

	"github.com/emailmax/warmup/internal/enum"
	"github.com/emailmax/warmup/internal/models"
)

// EventMonitor is a long-lived watcher over one mailbox folder. One active
// monitor per (account, folder) is a caller obligation; the component does
// not enforce it across instances.
type EventMonitor interface {
	StartListening(ctx context.Context) error
	StopListening() error
	ChangeMailbox(ctx context.Context, folderName string) error
	State() enum.MonitorState

	OnNewMessage(listener func(msg *models.InboundMessage))
	OnMessageFlagged(listener func(seqNum uint32, flags []string))
	OnMessageDeleted(listener func(seqNum uint32))
	OnConnectionError(listener func(err error))
	OnConnectionClosed(listener func())
}

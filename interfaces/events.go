package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
)

// EventPublisher emits integration events consumed by the external UI and
// assistant layers. Publishing is best-effort on the sync path: a failed
// publish is logged, never a reason to abort a pass.
type EventPublisher interface {
	PublishEmailReceived(ctx context.Context, event dto.EmailReceived) error
	PublishSyncDegraded(ctx context.Context, event dto.SyncDegraded) error
	Close() error
}

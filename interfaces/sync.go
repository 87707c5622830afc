package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
)

// SyncOrchestrator drives the synchronization lifecycle per account. Passes
// are serialized per account id: a second Sync trigger for an account
// already mid-sync coalesces onto the running pass.
type SyncOrchestrator interface {
	// Sync runs a bootstrap when the account has no delta token yet,
	// otherwise an incremental pass.
	Sync(ctx context.Context, accountID string) (*dto.SyncResult, error)

	// BootstrapSync performs the first full synchronization and establishes
	// the account's initial delta token.
	BootstrapSync(ctx context.Context, accountID string) (*dto.SyncResult, error)

	// IncrementalSync fetches changes since the persisted delta token.
	// Returns ErrSyncNotReady when no bootstrap has completed and
	// ErrSyncInProgress, without blocking, when a pass is already running
	// for the account.
	IncrementalSync(ctx context.Context, accountID string) (*dto.SyncResult, error)
}

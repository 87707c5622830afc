package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/internal/models"
)

// ProviderClient is the authenticated HTTP client for the remote mail API.
// It performs no retries of its own; any non-2xx response surfaces as a
// *provider.ProviderError carrying the response body.
type ProviderClient interface {
	// StartBootstrapSync kicks off (or polls) the provider-side bootstrap for
	// the account. Safe to call repeatedly while ready is false.
	StartBootstrapSync(ctx context.Context, daysWithin int, bodyType string) (*dto.BootstrapSyncResponse, error)

	// FetchUpdated retrieves one page of changed records. Exactly one of the
	// cursor tokens must be set; passing both, or neither, is a caller bug.
	FetchUpdated(ctx context.Context, cursor dto.SyncCursor) (*dto.UpdatedResponse, error)

	// SendMessage dispatches an outbound email. Not idempotent: callers must
	// not retry blindly on an ambiguous network failure.
	SendMessage(ctx context.Context, envelope dto.SendEnvelope) (*dto.SendResponse, error)
}

// ProviderClientFactory builds a ProviderClient bound to one account's
// bearer credential.
type ProviderClientFactory interface {
	ForAccount(account *models.Account) ProviderClient
}

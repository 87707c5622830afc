package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) (string, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)

	// UpdateDeltaToken advances the account's sync cursor. The token only
	// moves forward; rewinding requires a full re-bootstrap via
	// ClearDeltaToken.
	UpdateDeltaToken(ctx context.Context, id, deltaToken string) error
	ClearDeltaToken(ctx context.Context, id string) error

	SaveSearchIndexBlob(ctx context.Context, id string, blob []byte) error
	GetSearchIndexBlob(ctx context.Context, id string) ([]byte, error)

	UpdateLastSyncAt(ctx context.Context, id string) error
}

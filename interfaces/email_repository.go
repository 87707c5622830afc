package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/internal/models"
)

type EmailRepository interface {
	// Upsert stores the email keyed by (account, provider message id).
	// Replayed sync records update labels on the existing row instead of
	// creating duplicates. Returns the email id and whether a new row was
	// created.
	Upsert(ctx context.Context, email *models.Email) (string, bool, error)

	GetByID(ctx context.Context, id string) (*models.Email, error)
	GetByProviderMessageID(ctx context.Context, accountID, providerMessageID string) (*models.Email, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Email, int64, error)
	ListByThread(ctx context.Context, threadID string) ([]*models.Email, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

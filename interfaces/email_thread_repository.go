package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/internal/models"
)

type EmailThreadRepository interface {
	Create(ctx context.Context, thread *models.EmailThread) (string, error)
	Update(ctx context.Context, thread *models.EmailThread) error
	GetByID(ctx context.Context, id string) (*models.EmailThread, error)
	GetByProviderThreadID(ctx context.Context, accountID, providerThreadID string) (*models.EmailThread, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.EmailThread, int64, error)
}

package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/internal/models"
)

type EmailAttachmentRepository interface {
	// Store persists attachment metadata and, when content is non-nil,
	// uploads the bytes to object storage under the attachment's key.
	Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) (string, error)

	GetByID(ctx context.Context, id string) (*models.EmailAttachment, error)
	ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error)
	Download(ctx context.Context, id string) ([]byte, error)
}

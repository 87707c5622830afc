package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/internal/models"
)

// MailNormalizer converts provider-native records into the canonical
// Email/Thread model. It is the sole writer of email-to-thread membership.
type MailNormalizer interface {
	// NormalizeAndPersist upserts the record as an Email, attaches it to its
	// thread (creating the thread when needed) and stores attachment
	// metadata. Returns the persisted email and whether it was newly created.
	NormalizeAndPersist(ctx context.Context, account *models.Account, record dto.EmailRecord) (*models.Email, bool, error)
}

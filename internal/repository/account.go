package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/interfaces"
	mailcore_errors "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/internal/utils"
)

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) interfaces.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil {
		err := errors.New("account cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}

	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return account.ID, nil
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mailcore_errors.ErrAccountNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetByEmailAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.Account
	if err := r.db.WithContext(ctx).Where("email_address = ?", emailAddress).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mailcore_errors.ErrAccountNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context) ([]*models.Account, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.List")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

// UpdateDeltaToken persists a new sync cursor for the account. The caller is
// serialized per account, so last-write-wins here is safe.
func (r *accountRepository) UpdateDeltaToken(ctx context.Context, id, deltaToken string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateDeltaToken")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	if deltaToken == "" {
		err := errors.New("delta token cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_delta_token": deltaToken,
			"updated_at":       utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mailcore_errors.ErrAccountNotFound
	}

	return nil
}

// ClearDeltaToken rewinds the account to an unsynced state. Only a full
// re-bootstrap path calls this.
func (r *accountRepository) ClearDeltaToken(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.ClearDeltaToken")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_delta_token": nil,
			"updated_at":       utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mailcore_errors.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) SaveSearchIndexBlob(ctx context.Context, id string, blob []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.SaveSearchIndexBlob")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)
	span.SetTag("blob_size", len(blob))

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"search_index_blob": blob,
			"updated_at":        utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return mailcore_errors.ErrAccountNotFound
	}

	return nil
}

func (r *accountRepository) GetSearchIndexBlob(ctx context.Context, id string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.GetSearchIndexBlob")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	var account models.Account
	if err := r.db.WithContext(ctx).
		Select("id", "search_index_blob").
		Where("id = ?", id).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mailcore_errors.ErrAccountNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return account.SearchIndexBlob, nil
}

func (r *accountRepository) UpdateLastSyncAt(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "accountRepository.UpdateLastSyncAt")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": utils.Now(),
			"updated_at":   utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}

	return nil
}

package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/internal/utils"
)

type emailRepository struct {
	db *gorm.DB
}

func NewEmailRepository(db *gorm.DB) interfaces.EmailRepository {
	return &emailRepository{
		db: db,
	}
}

// Upsert stores an email keyed by (account_id, provider_message_id). Sync
// replays hit the update path, which refreshes labels only — synced message
// content is immutable.
func (r *emailRepository) Upsert(ctx context.Context, email *models.Email) (string, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.Upsert")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if email == nil {
		return "", false, errors.New("email cannot be nil")
	}

	if email.InternetMessageID != "" {
		email.InternetMessageID = utils.NormalizeMessageID(email.InternetMessageID)
	}
	if email.Subject != "" {
		email.CleanSubject = utils.NormalizeEmailSubject(email.Subject)
	}

	// Check if email already exists before creating
	existingEmail := &models.Email{}
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_message_id = ?", email.AccountID, email.ProviderMessageID).
		First(existingEmail).Error

	if err == nil {
		span.SetTag("duplicate", true)

		result := r.db.WithContext(ctx).
			Model(&models.Email{}).
			Where("id = ?", existingEmail.ID).
			Updates(map[string]interface{}{
				"labels":     email.Labels,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			tracing.TraceErr(span, result.Error)
			return "", false, result.Error
		}
		return existingEmail.ID, false, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tracing.TraceErr(span, err)
		return "", false, err
	}

	if err := r.db.WithContext(ctx).Create(email).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", false, err
	}

	return email.ID, true, nil
}

// GetByID retrieves an email by its ID
func (r *emailRepository) GetByID(ctx context.Context, id string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var email models.Email
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// GetByProviderMessageID retrieves an email by its provider-native message id
func (r *emailRepository) GetByProviderMessageID(ctx context.Context, accountID, providerMessageID string) (*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.GetByProviderMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var email models.Email
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_message_id = ?", accountID, providerMessageID).
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &email, nil
}

// ListByAccount retrieves emails for an account with pagination
func (r *emailRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.Email, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var emails []*models.Email
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("sent_at DESC NULLS LAST").
		Limit(limit).
		Offset(offset).
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return emails, count, nil
}

func (r *emailRepository) ListByThread(ctx context.Context, threadID string) ([]*models.Email, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.ListByThread")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("thread_id", threadID)

	var emails []*models.Email
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("sent_at ASC NULLS LAST").
		Find(&emails).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailRepository.CountByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Email{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

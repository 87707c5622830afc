package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/internal/utils"
)

type emailThreadRepository struct {
	db *gorm.DB
}

// NewEmailThreadRepository creates a new email thread repository
func NewEmailThreadRepository(db *gorm.DB) interfaces.EmailThreadRepository {
	return &emailThreadRepository{
		db: db,
	}
}

// Create inserts a new email thread into the database
func (r *emailThreadRepository) Create(ctx context.Context, thread *models.EmailThread) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if thread == nil {
		err := errors.New("thread cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}

	if thread.ID == "" {
		thread.ID = utils.GenerateNanoIDWithPrefix("thread", 16)
	}

	now := utils.Now()
	thread.CreatedAt = now
	thread.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(thread).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	return thread.ID, nil
}

// Update saves thread bookkeeping maintained during normalization
func (r *emailThreadRepository) Update(ctx context.Context, thread *models.EmailThread) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if thread == nil || thread.ID == "" {
		err := errors.New("thread id cannot be empty")
		tracing.TraceErr(span, err)
		return err
	}

	thread.UpdatedAt = utils.Now()

	if err := r.db.WithContext(ctx).Save(thread).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// GetByID retrieves an email thread by its ID
func (r *emailThreadRepository) GetByID(ctx context.Context, id string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.SetTag("thread_id", id)

	if id == "" {
		err := errors.New("thread ID cannot be empty")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var thread models.EmailThread
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &thread, nil
}

// GetByProviderThreadID looks up the thread an incoming record belongs to
func (r *emailThreadRepository) GetByProviderThreadID(ctx context.Context, accountID, providerThreadID string) (*models.EmailThread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.GetByProviderThreadID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var thread models.EmailThread
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND provider_thread_id = ?", accountID, providerThreadID).
		First(&thread).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &thread, nil
}

// ListByAccount retrieves threads for an account with pagination
func (r *emailThreadRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*models.EmailThread, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailThreadRepository.ListByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagAccount(span, accountID)

	var threads []*models.EmailThread
	var count int64

	if err := r.db.WithContext(ctx).Model(&models.EmailThread{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_message_at DESC NULLS LAST").
		Limit(limit).
		Offset(offset).
		Find(&threads).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	return threads, count, nil
}

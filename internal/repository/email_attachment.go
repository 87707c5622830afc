package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
)

type emailAttachmentRepository struct {
	db      *gorm.DB
	storage interfaces.StorageService
}

func NewEmailAttachmentRepository(db *gorm.DB, storage interfaces.StorageService) interfaces.EmailAttachmentRepository {
	return &emailAttachmentRepository{
		db:      db,
		storage: storage,
	}
}

// Store persists attachment metadata and uploads content when provided
func (r *emailAttachmentRepository) Store(ctx context.Context, attachment *models.EmailAttachment, content []byte) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Store")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if attachment == nil {
		err := errors.New("attachment cannot be nil")
		tracing.TraceErr(span, err)
		return "", err
	}
	if attachment.EmailID == "" {
		err := errors.New("attachment email id cannot be empty")
		tracing.TraceErr(span, err)
		return "", err
	}

	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}

	if content != nil {
		if attachment.StorageKey == "" {
			attachment.StorageKey = fmt.Sprintf("attachments/%s/%s", attachment.EmailID, attachment.ID)
			if err := r.db.WithContext(ctx).
				Model(&models.EmailAttachment{}).
				Where("id = ?", attachment.ID).
				Update("storage_key", attachment.StorageKey).Error; err != nil {
				tracing.TraceErr(span, err)
				return "", err
			}
		}

		if err := r.storage.Upload(ctx, attachment.StorageKey, content, attachment.ContentType); err != nil {
			tracing.TraceErr(span, err)
			return "", errors.Wrap(err, "failed to upload attachment content")
		}
	}

	return attachment.ID, nil
}

func (r *emailAttachmentRepository) GetByID(ctx context.Context, id string) (*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachment models.EmailAttachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &attachment, nil
}

func (r *emailAttachmentRepository) ListByEmail(ctx context.Context, emailID string) ([]*models.EmailAttachment, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.ListByEmail")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var attachments []*models.EmailAttachment
	if err := r.db.WithContext(ctx).
		Where("email_id = ?", emailID).
		Find(&attachments).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attachments, nil
}

func (r *emailAttachmentRepository) Download(ctx context.Context, id string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAttachmentRepository.Download")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	attachment, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attachment == nil || attachment.StorageKey == "" {
		return nil, errors.New("attachment has no stored content")
	}

	return r.storage.Download(ctx, attachment.StorageKey)
}

package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxia/mailcore/internal/utils"
)

// EmailAttachment represents an attachment to a mirrored email. Attachment
// bytes live in object storage under StorageKey; only metadata is kept here.
type EmailAttachment struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailID     string `gorm:"column:email_id;type:varchar(50);index;not null"`
	Filename    string `gorm:"column:filename;type:varchar(500)"`
	ContentType string `gorm:"column:content_type;type:varchar(255)"`
	Size        int    `gorm:"column:size;default:0"`
	IsInline    bool   `gorm:"column:is_inline;default:false"`

	StorageBucket string `gorm:"column:storage_bucket;type:varchar(255)"`
	StorageKey    string `gorm:"column:storage_key;type:varchar(1000)"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (EmailAttachment) TableName() string {
	return "email_attachments"
}

func (e *EmailAttachment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("file", 12)
	}
	e.CreatedAt = utils.Now()
	return nil
}

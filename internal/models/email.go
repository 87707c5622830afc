package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/internal/utils"
)

// Email represents a single mirrored message. Immutable once synced except
// for label updates carried by later delta records.
type Email struct {
	ID                string `gorm:"column:id;type:varchar(50);primaryKey"`
	AccountID         string `gorm:"column:account_id;type:varchar(50);index;uniqueIndex:idx_account_provider_message;not null"`
	ProviderMessageID string `gorm:"column:provider_message_id;type:varchar(255);uniqueIndex:idx_account_provider_message;not null"`
	ThreadID          string `gorm:"column:thread_id;type:varchar(50);index"`
	InternetMessageID string `gorm:"column:internet_message_id;type:varchar(255);index"`

	// Core email metadata
	Subject      string         `gorm:"column:subject;type:varchar(1000)"`
	CleanSubject string         `gorm:"column:clean_subject;type:varchar(1000)"`
	FromAddress  string         `gorm:"column:from_address;type:varchar(255);index"`
	FromName     string         `gorm:"column:from_name;type:varchar(255)"`
	ReplyTo      string         `gorm:"column:reply_to;type:varchar(255)"`
	ToAddresses  pq.StringArray `gorm:"column:to_addresses;type:text[]"`
	CcAddresses  pq.StringArray `gorm:"column:cc_addresses;type:text[]"`
	BccAddresses pq.StringArray `gorm:"column:bcc_addresses;type:text[]"`

	// Time information
	SentAt     *time.Time `gorm:"column:sent_at;type:timestamp;index"`
	ReceivedAt *time.Time `gorm:"column:received_at;type:timestamp;index"`

	// Content
	BodyHTML      string `gorm:"column:body_html;type:text"`
	BodySnippet   string `gorm:"column:body_snippet;type:text"`
	HasAttachment bool   `gorm:"column:has_attachment;default:false"`

	// Provider labels, e.g. inbox/sent/draft/spam
	Labels pq.StringArray `gorm:"column:labels;type:text[]"`

	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Email) TableName() string {
	return "emails"
}

func (e *Email) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("email", 24)
	}
	e.CreatedAt = utils.Now()
	return nil
}

func (e *Email) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AllParticipants returns every address on the message, deduplicated.
func (e *Email) AllParticipants() []string {
	participants := make([]string, 0, 1+len(e.ToAddresses)+len(e.CcAddresses)+len(e.BccAddresses))
	participants = append(participants, e.FromAddress)
	participants = append(participants, e.ToAddresses...)
	participants = append(participants, e.CcAddresses...)
	participants = append(participants, e.BccAddresses...)
	return utils.UniqueEmails(participants)
}

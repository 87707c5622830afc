package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/internal/utils"
)

type EmailThread struct {
	ID               string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID        string         `gorm:"column:account_id;type:varchar(50);index;uniqueIndex:idx_account_provider_thread" json:"accountId"`
	ProviderThreadID string         `gorm:"column:provider_thread_id;type:varchar(255);uniqueIndex:idx_account_provider_thread" json:"providerThreadId"`
	Subject          string         `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	Participants     pq.StringArray `gorm:"column:participants;type:text[]" json:"participants"`
	MessageCount     int            `gorm:"column:message_count;default:0" json:"messageCount"`
	HasAttachments   bool           `gorm:"column:has_attachments;default:false" json:"hasAttachments"`

	// Status flags, maintained from message labels
	InboxStatus    bool `gorm:"column:inbox_status;default:false" json:"inboxStatus"`
	SentStatus     bool `gorm:"column:sent_status;default:false" json:"sentStatus"`
	DraftStatus    bool `gorm:"column:draft_status;default:false" json:"draftStatus"`
	ArchivedStatus bool `gorm:"column:archived_status;default:false" json:"archivedStatus"`
	TrashedStatus  bool `gorm:"column:trashed_status;default:false" json:"trashedStatus"`
	StarredStatus  bool `gorm:"column:starred_status;default:false" json:"starredStatus"`
	SpamStatus     bool `gorm:"column:spam_status;default:false" json:"spamStatus"`
	ReadStatus     bool `gorm:"column:read_status;default:false" json:"readStatus"`

	LastMessageAt  *time.Time `gorm:"column:last_message_at;type:timestamp" json:"lastMessageAt"`
	FirstMessageAt *time.Time `gorm:"column:first_message_at;type:timestamp" json:"firstMessageAt"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamp" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamp" json:"updatedAt"`
}

func (EmailThread) TableName() string {
	return "email_threads"
}

func (e *EmailThread) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = utils.GenerateNanoIDWithPrefix("thread", 16)
	}
	e.CreatedAt = utils.Now()
	return nil
}

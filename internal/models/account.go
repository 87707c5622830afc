package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/inboxia/mailcore/internal/utils"
)

// Account represents one connected mailbox and its durable sync state.
type Account struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null"`
	DisplayName  string `gorm:"column:display_name;type:varchar(255)"`
	AccessToken  string `gorm:"column:access_token;type:text;not null"`

	// NextDeltaToken is nil until the first bootstrap sync completes. It only
	// ever advances to a token returned by a closed pagination pass; a full
	// re-bootstrap is the only way to rewind it.
	NextDeltaToken *string `gorm:"column:next_delta_token;type:text"`

	// SearchIndexBlob holds the serialized per-account hybrid search index.
	// Nil until the index is first initialised.
	SearchIndexBlob []byte `gorm:"column:search_index_blob;type:bytea"`

	LastSyncAt *time.Time `gorm:"column:last_sync_at;type:timestamp"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	a.CreatedAt = utils.Now()
	return nil
}

// IsSyncReady reports whether the account finished its bootstrap sync.
func (a *Account) IsSyncReady() bool {
	return a.NextDeltaToken != nil && *a.NextDeltaToken != ""
}

package repository

import (
	"gorm.io/gorm"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/services/storage"
)

type Repositories struct {
	AccountRepository         interfaces.AccountRepository
	EmailRepository           interfaces.EmailRepository
	EmailThreadRepository     interfaces.EmailThreadRepository
	EmailAttachmentRepository interfaces.EmailAttachmentRepository
}

func InitRepositories(db *gorm.DB, r2Config *config.R2StorageConfig) *Repositories {
	emailAttachmentStorage := storage.NewR2StorageService(
		r2Config.AccountID,
		r2Config.AccessKeyID,
		r2Config.AccessKeySecret,
		r2Config.EmailAttachmentBucket,
		false, // private access
	)

	return &Repositories{
		AccountRepository:         NewAccountRepository(db),
		EmailRepository:           NewEmailRepository(db),
		EmailThreadRepository:     NewEmailThreadRepository(db),
		EmailAttachmentRepository: NewEmailAttachmentRepository(db, emailAttachmentStorage),
	}
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Email{},
		&models.EmailAttachment{},
		&models.EmailThread{},
	)
}

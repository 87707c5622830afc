package handlers

import (
	"github.com/inboxia/mailcore/internal/repository"
	"github.com/inboxia/mailcore/services"
)

type APIHandlers struct {
	Accounts *AccountsHandler
	Emails   *EmailsHandler
	Search   *SearchHandler
}

func InitHandlers(repos *repository.Repositories, s *services.Services) *APIHandlers {
	return &APIHandlers{
		Accounts: NewAccountsHandler(repos.AccountRepository, s.SyncOrchestrator),
		Emails:   NewEmailsHandler(repos.AccountRepository, repos.EmailRepository, s.ProviderFactory),
		Search:   NewSearchHandler(s.RetrievalService),
	}
}

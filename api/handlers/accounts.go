package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
)

type AccountsHandler struct {
	accountRepository interfaces.AccountRepository
	orchestrator      interfaces.SyncOrchestrator
}

func NewAccountsHandler(accountRepository interfaces.AccountRepository, orchestrator interfaces.SyncOrchestrator) *AccountsHandler {
	return &AccountsHandler{
		accountRepository: accountRepository,
		orchestrator:      orchestrator,
	}
}

// RegisterAccountRequest connects one mailbox by its provider credential.
type RegisterAccountRequest struct {
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
	AccessToken  string `json:"accessToken"`
}

// Register handles POST /v1/accounts
func (h *AccountsHandler) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "AccountsHandler.Register")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request RegisterAccountRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			respondWithError(c, span, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if request.EmailAddress == "" || request.AccessToken == "" {
			respondWithError(c, span, http.StatusBadRequest, "Missing required fields", errors.New("emailAddress and accessToken are required"))
			return
		}

		existing, err := h.accountRepository.GetByEmailAddress(ctx, request.EmailAddress)
		if err != nil && errors.Cause(err) != er.ErrAccountNotFound {
			respondWithError(c, span, http.StatusInternalServerError, "Failed to register account", err)
			return
		}
		if existing != nil {
			respondWithError(c, span, http.StatusConflict, "Account already registered", errors.Errorf("account exists for %s", request.EmailAddress))
			return
		}

		account := &models.Account{
			EmailAddress: request.EmailAddress,
			DisplayName:  request.DisplayName,
			AccessToken:  request.AccessToken,
		}
		id, err := h.accountRepository.Create(ctx, account)
		if err != nil {
			respondWithError(c, span, http.StatusInternalServerError, "Failed to register account", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":           id,
			"emailAddress": account.EmailAddress,
		})
	}
}

// List handles GET /v1/accounts
func (h *AccountsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "AccountsHandler.List")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := h.accountRepository.List(ctx)
		if err != nil {
			respondWithError(c, span, http.StatusInternalServerError, "Failed to list accounts", err)
			return
		}

		type accountView struct {
			ID           string `json:"id"`
			EmailAddress string `json:"emailAddress"`
			DisplayName  string `json:"displayName"`
			SyncReady    bool   `json:"syncReady"`
			LastSyncAt   string `json:"lastSyncAt,omitempty"`
		}

		views := make([]accountView, 0, len(accounts))
		for _, account := range accounts {
			view := accountView{
				ID:           account.ID,
				EmailAddress: account.EmailAddress,
				DisplayName:  account.DisplayName,
				SyncReady:    account.IsSyncReady(),
			}
			if account.LastSyncAt != nil {
				view.LastSyncAt = account.LastSyncAt.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			views = append(views, view)
		}

		c.JSON(http.StatusOK, gin.H{"accounts": views})
	}
}

// Sync handles POST /v1/accounts/:id/sync. It bootstraps an account without
// a cursor and runs an incremental pass otherwise.
func (h *AccountsHandler) Sync() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "AccountsHandler.Sync")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		result, err := h.orchestrator.Sync(ctx, accountID)
		if err != nil {
			switch errors.Cause(err) {
			case er.ErrAccountNotFound:
				respondWithError(c, span, http.StatusNotFound, "Account not found", err)
			case er.ErrBootstrapTimeout:
				respondWithError(c, span, http.StatusGatewayTimeout, "Bootstrap sync timed out", err)
			default:
				respondWithError(c, span, http.StatusInternalServerError, "Sync failed", err)
			}
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

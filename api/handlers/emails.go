package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/tracing"
)

type EmailsHandler struct {
	accountRepository interfaces.AccountRepository
	emailRepository   interfaces.EmailRepository
	providerFactory   interfaces.ProviderClientFactory
}

func NewEmailsHandler(
	accountRepository interfaces.AccountRepository,
	emailRepository interfaces.EmailRepository,
	providerFactory interfaces.ProviderClientFactory,
) *EmailsHandler {
	return &EmailsHandler{
		accountRepository: accountRepository,
		emailRepository:   emailRepository,
		providerFactory:   providerFactory,
	}
}

// SendEmailRequest represents the API request for sending an email
type SendEmailRequest struct {
	AccountID    string   `json:"accountId"`
	ToAddresses  []string `json:"toAddresses"`
	CcAddresses  []string `json:"ccAddresses"`
	BccAddresses []string `json:"bccAddresses"`
	ReplyTo      string   `json:"replyTo"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	InReplyTo    string   `json:"inReplyTo"`
	References   string   `json:"references"`
	ThreadID     string   `json:"threadId"`
}

// Send handles POST /v1/emails. Dispatch goes straight through the provider;
// the sent copy arrives on the next sync pass like any other message.
func (h *EmailsHandler) Send() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "EmailsHandler.Send")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request SendEmailRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			respondWithError(c, span, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		if request.AccountID == "" {
			respondWithError(c, span, http.StatusBadRequest, "Missing accountId", errors.New("accountId is required"))
			return
		}
		if len(request.ToAddresses) == 0 {
			respondWithError(c, span, http.StatusBadRequest, "Missing recipients", errors.New("toAddresses is empty"))
			return
		}
		tracing.TagAccount(span, request.AccountID)

		account, err := h.accountRepository.GetByID(ctx, request.AccountID)
		if err != nil {
			switch errors.Cause(err) {
			case er.ErrAccountNotFound:
				respondWithError(c, span, http.StatusNotFound, "Account not found", err)
			default:
				respondWithError(c, span, http.StatusInternalServerError, "Failed to load account", err)
			}
			return
		}

		envelope := dto.SendEnvelope{
			From:       dto.EmailAddress{Name: account.DisplayName, Address: account.EmailAddress},
			To:         toEmailAddresses(request.ToAddresses),
			Cc:         toEmailAddresses(request.CcAddresses),
			Bcc:        toEmailAddresses(request.BccAddresses),
			Subject:    request.Subject,
			Body:       request.Body,
			InReplyTo:  request.InReplyTo,
			References: request.References,
			ThreadID:   request.ThreadID,
		}
		if request.ReplyTo != "" {
			envelope.ReplyTo = &dto.EmailAddress{Address: request.ReplyTo}
		}

		client := h.providerFactory.ForAccount(account)
		response, err := client.SendMessage(ctx, envelope)
		if err != nil {
			respondWithError(c, span, http.StatusBadGateway, "Failed to send email", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"ids": response.IDs})
	}
}

// List handles GET /v1/accounts/:id/emails. Reads come straight from the
// mirrored store, so a failing provider never blocks them.
func (h *EmailsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "EmailsHandler.List")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			limit = 50
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			offset = 0
		}

		emails, total, err := h.emailRepository.ListByAccount(ctx, accountID, limit, offset)
		if err != nil {
			respondWithError(c, span, http.StatusInternalServerError, "Failed to list emails", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"emails": emails,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func toEmailAddresses(addresses []string) []dto.EmailAddress {
	result := make([]dto.EmailAddress, 0, len(addresses))
	for _, address := range addresses {
		result = append(result, dto.EmailAddress{Address: address})
	}
	return result
}

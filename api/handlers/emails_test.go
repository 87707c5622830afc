package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/models"
)

type stubAccountRepo struct {
	accounts map[string]*models.Account
}

func (r *stubAccountRepo) Create(ctx context.Context, account *models.Account) (string, error) {
	return account.ID, nil
}

func (r *stubAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, er.ErrAccountNotFound
	}
	return account, nil
}

func (r *stubAccountRepo) GetByEmailAddress(ctx context.Context, emailAddress string) (*models.Account, error) {
	return nil, er.ErrAccountNotFound
}

func (r *stubAccountRepo) List(ctx context.Context) ([]*models.Account, error) { return nil, nil }

func (r *stubAccountRepo) UpdateDeltaToken(ctx context.Context, id, deltaToken string) error {
	return nil
}

func (r *stubAccountRepo) ClearDeltaToken(ctx context.Context, id string) error { return nil }

func (r *stubAccountRepo) SaveSearchIndexBlob(ctx context.Context, id string, blob []byte) error {
	return nil
}

func (r *stubAccountRepo) GetSearchIndexBlob(ctx context.Context, id string) ([]byte, error) {
	return nil, nil
}

func (r *stubAccountRepo) UpdateLastSyncAt(ctx context.Context, id string) error { return nil }

type stubProviderClient struct {
	sent []dto.SendEnvelope
}

func (c *stubProviderClient) StartBootstrapSync(ctx context.Context, daysWithin int, bodyType string) (*dto.BootstrapSyncResponse, error) {
	return &dto.BootstrapSyncResponse{}, nil
}

func (c *stubProviderClient) FetchUpdated(ctx context.Context, cursor dto.SyncCursor) (*dto.UpdatedResponse, error) {
	return &dto.UpdatedResponse{}, nil
}

func (c *stubProviderClient) SendMessage(ctx context.Context, envelope dto.SendEnvelope) (*dto.SendResponse, error) {
	c.sent = append(c.sent, envelope)
	return &dto.SendResponse{IDs: []string{"msg_1"}}, nil
}

type stubProviderFactory struct {
	client *stubProviderClient
}

func (f *stubProviderFactory) ForAccount(account *models.Account) interfaces.ProviderClient {
	return f.client
}

func performSend(t *testing.T, handler *EmailsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/emails", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Send()(c)
	return recorder
}

func TestEmailsHandler_SendUnknownAccountReturnsNotFound(t *testing.T) {
	handler := NewEmailsHandler(
		&stubAccountRepo{accounts: map[string]*models.Account{}},
		nil,
		&stubProviderFactory{client: &stubProviderClient{}},
	)

	recorder := performSend(t, handler, `{"accountId":"acct_missing","toAddresses":["rcpt@acme.com"]}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Account not found")
}

func TestEmailsHandler_SendDispatchesThroughProvider(t *testing.T) {
	upstream := &stubProviderClient{}
	handler := NewEmailsHandler(
		&stubAccountRepo{accounts: map[string]*models.Account{
			"acct_1": {ID: "acct_1", EmailAddress: "owner@acme.com", DisplayName: "Owner"},
		}},
		nil,
		&stubProviderFactory{client: upstream},
	)

	recorder := performSend(t, handler, `{"accountId":"acct_1","toAddresses":["rcpt@acme.com"],"subject":"hello"}`)

	assert.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, upstream.sent, 1)
	assert.Equal(t, "owner@acme.com", upstream.sent[0].From.Address)
	assert.Equal(t, "Owner", upstream.sent[0].From.Name)
}

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/internal/models"
)

func TestStartBootstrapSync_SendsAuthAndParams(t *testing.T) {
	var gotAuth, gotDays, gotBodyType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotDays = r.URL.Query().Get("daysWithin")
		gotBodyType = r.URL.Query().Get("bodyType")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email/sync", r.URL.Path)
		json.NewEncoder(w).Encode(dto.BootstrapSyncResponse{Ready: true, SyncUpdatedToken: "S0"})
	}))
	defer server.Close()

	client := NewProviderClient(server.URL, "secret-token")
	response, err := client.StartBootstrapSync(context.Background(), 30, "html")

	require.NoError(t, err)
	assert.True(t, response.Ready)
	assert.Equal(t, "S0", response.SyncUpdatedToken)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "30", gotDays)
	assert.Equal(t, "html", gotBodyType)
}

func TestFetchUpdated_UsesExactlyOneToken(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, "/email/sync/updated", r.URL.Path)
		json.NewEncoder(w).Encode(dto.UpdatedResponse{NextDeltaToken: "T1"})
	}))
	defer server.Close()

	client := NewProviderClient(server.URL, "tok")

	_, err := client.FetchUpdated(context.Background(), dto.SyncCursor{DeltaToken: "T0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"T0"}, gotQuery["deltaToken"])
	assert.NotContains(t, gotQuery, "pageToken")

	_, err = client.FetchUpdated(context.Background(), dto.SyncCursor{PageToken: "P1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, gotQuery["pageToken"])
	assert.NotContains(t, gotQuery, "deltaToken")
}

func TestFetchUpdated_RejectsBadCursors(t *testing.T) {
	client := NewProviderClient("http://unused", "tok")

	_, err := client.FetchUpdated(context.Background(), dto.SyncCursor{})
	assert.Error(t, err)

	_, err = client.FetchUpdated(context.Background(), dto.SyncCursor{DeltaToken: "T0", PageToken: "P1"})
	assert.Error(t, err)
}

func TestFetchUpdated_DecodesRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.UpdatedResponse{
			Records: []dto.EmailRecord{
				{ID: "m1", Subject: "hello"},
				{ID: "m2", Subject: "world"},
			},
			NextPageToken: "P1",
		})
	}))
	defer server.Close()

	client := NewProviderClient(server.URL, "tok")
	response, err := client.FetchUpdated(context.Background(), dto.SyncCursor{DeltaToken: "T0"})

	require.NoError(t, err)
	require.Len(t, response.Records, 2)
	assert.Equal(t, "m1", response.Records[0].ID)
	assert.Equal(t, "P1", response.NextPageToken)
	assert.Empty(t, response.NextDeltaToken)
}

func TestProviderError_CarriesResponseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewProviderClient(server.URL, "tok")
	_, err := client.FetchUpdated(context.Background(), dto.SyncCursor{DeltaToken: "T0"})

	require.Error(t, err)
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "rate limited")
	assert.True(t, providerErr.Retryable())
}

func TestProviderError_Retryable(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 500}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 429}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 401}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 404}).Retryable())
}

func TestSendMessage_PostsEnvelope(t *testing.T) {
	var gotEnvelope dto.SendEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotEnvelope))
		json.NewEncoder(w).Encode(dto.SendResponse{IDs: []string{"m_out_1"}})
	}))
	defer server.Close()

	client := NewProviderClient(server.URL, "tok")
	response, err := client.SendMessage(context.Background(), dto.SendEnvelope{
		From:    dto.EmailAddress{Address: "me@acme.com"},
		To:      []dto.EmailAddress{{Address: "you@acme.com"}},
		Subject: "ping",
		Body:    "<p>hello</p>",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"m_out_1"}, response.IDs)
	assert.Equal(t, "ping", gotEnvelope.Subject)
	assert.Equal(t, "me@acme.com", gotEnvelope.From.Address)
}

func TestFactory_BindsAccountToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(dto.BootstrapSyncResponse{Ready: true})
	}))
	defer server.Close()

	factory := NewProviderClientFactory(&config.ProviderConfig{Url: server.URL})
	client := factory.ForAccount(&models.Account{ID: "acct_1", AccessToken: "per-account-token"})

	_, err := client.StartBootstrapSync(context.Background(), 7, "text")
	require.NoError(t, err)
	assert.Equal(t, "Bearer per-account-token", gotAuth)
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/models"
	"github.com/inboxia/mailcore/internal/tracing"
)

const defaultRequestTimeout = 30 * time.Second

type providerClient struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

type providerClientFactory struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
}

func NewProviderClientFactory(cfg *config.ProviderConfig) interfaces.ProviderClientFactory {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}

	return &providerClientFactory{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ForAccount binds a client to one account's bearer credential. The
// underlying http.Client is shared; only the token differs.
func (f *providerClientFactory) ForAccount(account *models.Account) interfaces.ProviderClient {
	return &providerClient{
		baseURL:     f.cfg.Url,
		bearerToken: account.AccessToken,
		httpClient:  f.httpClient,
	}
}

// NewProviderClient builds a client with an explicit token, used by tests
// and one-off tooling.
func NewProviderClient(baseURL, bearerToken string) interfaces.ProviderClient {
	return &providerClient{
		baseURL:     baseURL,
		bearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
}

func (c *providerClient) StartBootstrapSync(ctx context.Context, daysWithin int, bodyType string) (*dto.BootstrapSyncResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.StartBootstrapSync")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("days_within", daysWithin)

	params := url.Values{}
	params.Set("daysWithin", strconv.Itoa(daysWithin))
	params.Set("bodyType", bodyType)

	body, err := c.do(ctx, span, http.MethodPost, "/email/sync?"+params.Encode(), nil, "startBootstrapSync")
	if err != nil {
		return nil, err
	}

	var response dto.BootstrapSyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal bootstrap sync response")
	}

	return &response, nil
}

func (c *providerClient) FetchUpdated(ctx context.Context, cursor dto.SyncCursor) (*dto.UpdatedResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.FetchUpdated")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	// Exactly one token drives a request; anything else is a caller bug.
	if (cursor.DeltaToken == "") == (cursor.PageToken == "") {
		err := errors.New("fetchUpdated requires exactly one of deltaToken or pageToken")
		tracing.TraceErr(span, err)
		return nil, err
	}

	params := url.Values{}
	if cursor.DeltaToken != "" {
		params.Set("deltaToken", cursor.DeltaToken)
	} else {
		params.Set("pageToken", cursor.PageToken)
	}

	body, err := c.do(ctx, span, http.MethodGet, "/email/sync/updated?"+params.Encode(), nil, "fetchUpdated")
	if err != nil {
		return nil, err
	}

	var response dto.UpdatedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal updated response")
	}
	span.SetTag("records", len(response.Records))

	return &response, nil
}

func (c *providerClient) SendMessage(ctx context.Context, envelope dto.SendEnvelope) (*dto.SendResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "providerClient.SendMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	payload, err := json.Marshal(envelope)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal envelope")
	}

	body, err := c.do(ctx, span, http.MethodPost, "/email/messages", payload, "sendMessage")
	if err != nil {
		return nil, err
	}

	var response dto.SendResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal send response")
	}

	return &response, nil
}

// do executes one request and returns the raw response body. Non-2xx
// responses become a *ProviderError carrying the body; no retries happen at
// this layer.
func (c *providerClient) do(ctx context.Context, span opentracing.Span, method, path string, payload []byte, operation string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		providerErr := &ProviderError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Operation:  operation,
		}
		tracing.TraceErr(span, providerErr)
		return nil, providerErr
	}

	span.SetTag("status_code", fmt.Sprintf("%d", resp.StatusCode))
	return body, nil
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/config"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/internal/utils"
)

// Vector dimensionality produced by the embedding model.
const EmbeddingDimensions = 768

// Bound on the dedupe cache; identical inputs inside one sync pass vastly
// outnumber distinct ones, so a small cache pays for itself.
const maxCacheEntries = 512

type EmbeddingError struct {
	StatusCode int
	Body       string
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding request failed with status %d: %s", e.StatusCode, e.Body)
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embeddingClient struct {
	cfg        *config.EmbeddingConfig
	httpClient *http.Client

	cacheMutex sync.Mutex
	cache      map[string][]float32
}

func NewEmbeddingClient(cfg *config.EmbeddingConfig) interfaces.EmbeddingClient {
	return &embeddingClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: make(map[string][]float32),
	}
}

func (c *embeddingClient) Dimensions() int {
	return EmbeddingDimensions
}

// Embed returns a 768-dimension vector for the input text. The input is
// whitespace-normalized first so near-duplicate text produces stable vectors.
// A failed call is surfaced as *EmbeddingError; the caller must treat the
// affected document insert as failed rather than skipping it silently.
func (c *embeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "embeddingClient.Embed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	normalized := utils.CollapseWhitespace(text)
	span.SetTag("input_length", len(normalized))

	if cached := c.fromCache(normalized); cached != nil {
		span.SetTag("cache_hit", true)
		return cached, nil
	}

	payload, err := json.Marshal(embeddingRequest{
		Model: c.cfg.Model,
		Input: normalized,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Url+"/v1/embeddings", bytes.NewBuffer(payload))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "embedding request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		embErr := &EmbeddingError{StatusCode: resp.StatusCode, Body: string(body)}
		tracing.TraceErr(span, embErr)
		return nil, embErr
	}

	var response embeddingResponse
	if err := json.Unmarshal(body, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to unmarshal embedding response")
	}

	if len(response.Embedding) != EmbeddingDimensions {
		err := errors.Errorf("expected %d dimensions, got %d", EmbeddingDimensions, len(response.Embedding))
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.store(normalized, response.Embedding)
	return response.Embedding, nil
}

func (c *embeddingClient) fromCache(normalized string) []float32 {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	return c.cache[normalized]
}

func (c *embeddingClient) store(normalized string, vector []float32) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	if len(c.cache) >= maxCacheEntries {
		// Drop the whole cache rather than tracking recency; repeated
		// identical calls cluster in time.
		c.cache = make(map[string][]float32)
	}
	c.cache[normalized] = vector
}

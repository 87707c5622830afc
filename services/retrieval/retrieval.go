package retrieval

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/tracing"
)

type retrievalService struct {
	log       logger.Logger
	embedding interfaces.EmbeddingClient
	index     interfaces.IndexStore
}

func NewRetrievalService(log logger.Logger, embeddingClient interfaces.EmbeddingClient, index interfaces.IndexStore) interfaces.RetrievalService {
	return &retrievalService{
		log:       log,
		embedding: embeddingClient,
		index:     index,
	}
}

func (s *retrievalService) HybridSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RetrievalService.HybridSearch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(log.String("term", term))

	if strings.TrimSpace(term) == "" {
		return nil, errors.New("search term is empty")
	}

	vector, err := s.embedding.Embed(ctx, term)
	if err != nil {
		// The lexical index still works without the model; degrade instead
		// of failing the query outright.
		tracing.TraceErr(span, err)
		s.log.Warnf("embedding failed for account %s, falling back to lexical search: %v", accountID, err)
		return s.index.LexicalSearch(ctx, accountID, term)
	}

	hits, err := s.index.HybridSearch(ctx, accountID, term, vector)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return hits, nil
}

func (s *retrievalService) LexicalSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RetrievalService.LexicalSearch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(log.String("term", term))

	hits, err := s.index.LexicalSearch(ctx, accountID, term)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return hits, nil
}

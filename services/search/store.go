package search

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/dto"
	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/logger"
	"github.com/inboxia/mailcore/internal/tracing"
	"github.com/inboxia/mailcore/services/embedding"
)

// indexStore keeps one index per account in memory and writes the serialized
// form back through the account repository after every mutation.
type indexStore struct {
	log      logger.Logger
	accounts interfaces.AccountRepository

	mu      sync.Mutex
	indexes map[string]*accountIndex
}

func NewIndexStore(log logger.Logger, accounts interfaces.AccountRepository) interfaces.IndexStore {
	return &indexStore{
		log:      log,
		accounts: accounts,
		indexes:  make(map[string]*accountIndex),
	}
}

func (s *indexStore) Initialise(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.Initialise")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	_, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *indexStore) Insert(ctx context.Context, accountID string, doc dto.IndexedDocument) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.Insert")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(log.String("documentId", doc.ID))

	return s.InsertBatch(ctx, accountID, []dto.IndexedDocument{doc})
}

func (s *indexStore) InsertBatch(ctx context.Context, accountID string, docs []dto.IndexedDocument) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.InsertBatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(log.Int("documents", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, doc := range docs {
		if len(doc.Embeddings) != 0 && len(doc.Embeddings) != idx.dimensions {
			err := errors.Errorf("document %s has %d dimensions, index expects %d", doc.ID, len(doc.Embeddings), idx.dimensions)
			tracing.TraceErr(span, err)
			return err
		}
		idx.insert(doc)
	}

	if err := s.persist(ctx, accountID, idx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *indexStore) Delete(ctx context.Context, accountID string, docID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(log.String("documentId", docID))

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.delete(docID) {
		return nil
	}

	if err := s.persist(ctx, accountID, idx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *indexStore) Contains(ctx context.Context, accountID string, docID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.Contains")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.has(docID), nil
}

func (s *indexStore) HybridSearch(ctx context.Context, accountID, term string, vector []float32) ([]dto.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.HybridSearch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	hits := idx.hybridSearch(term, vector)
	span.LogFields(log.Int("hits", len(hits)))
	return hits, nil
}

func (s *indexStore) LexicalSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.LexicalSearch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	hits := idx.lexicalSearch(term)
	span.LogFields(log.Int("hits", len(hits)))
	return hits, nil
}

func (s *indexStore) DocumentCount(ctx context.Context, accountID string) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexStore.DocumentCount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	idx, err := s.indexFor(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.count(), nil
}

func (s *indexStore) Evict(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indexes, accountID)
}

// indexFor returns the account's in-memory index, restoring it from the
// persisted blob on first access. An account without a blob gets a fresh
// empty index that is persisted immediately so a later restore sees a valid
// blob rather than an absent one.
func (s *indexStore) indexFor(ctx context.Context, accountID string) (*accountIndex, error) {
	s.mu.Lock()
	if idx, ok := s.indexes[accountID]; ok {
		s.mu.Unlock()
		return idx, nil
	}
	s.mu.Unlock()

	blob, err := s.accounts.GetSearchIndexBlob(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var idx *accountIndex
	if len(blob) == 0 {
		idx = newAccountIndex(embedding.EmbeddingDimensions)
		idx.mu.Lock()
		err = s.persist(ctx, accountID, idx)
		idx.mu.Unlock()
		if err != nil {
			return nil, err
		}
	} else {
		snapshot, err := deserialize(blob)
		if err != nil {
			s.log.Errorf("search index blob for account %s failed to restore: %v", accountID, err)
			return nil, errors.Wrap(er.ErrIndexCorrupted, err.Error())
		}
		idx = fromSnapshot(snapshot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.indexes[accountID]; ok {
		return existing, nil
	}
	s.indexes[accountID] = idx
	return idx, nil
}

// persist is called with the account index lock held.
func (s *indexStore) persist(ctx context.Context, accountID string, idx *accountIndex) error {
	blob, err := serialize(idx.snapshot())
	if err != nil {
		return err
	}
	return s.accounts.SaveSearchIndexBlob(ctx, accountID, blob)
}

package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
)

// IndexStore manages one hybrid search index per account: lexical fields and
// a vector field coexisting in the same document. Indexes are restored from
// the account's persisted blob on first use and written back after inserts.
type IndexStore interface {
	// Initialise loads the account blob into memory, creating and persisting
	// an empty index when no blob exists yet.
	Initialise(ctx context.Context, accountID string) error

	// Insert adds one document and persists the index.
	Insert(ctx context.Context, accountID string, doc dto.IndexedDocument) error

	// InsertBatch adds documents and persists once at the batch boundary.
	InsertBatch(ctx context.Context, accountID string, docs []dto.IndexedDocument) error

	// Delete removes a document by id and persists the index.
	Delete(ctx context.Context, accountID string, docID string) error

	// Contains reports whether a document id is already indexed.
	Contains(ctx context.Context, accountID string, docID string) (bool, error)

	// HybridSearch combines lexical relevance with cosine similarity on the
	// query vector. The similarity floor is a hard cutoff.
	HybridSearch(ctx context.Context, accountID, term string, vector []float32) ([]dto.SearchHit, error)

	// LexicalSearch runs a plain term search with no vector component.
	LexicalSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error)

	// DocumentCount reports the number of indexed documents for the account.
	DocumentCount(ctx context.Context, accountID string) (int, error)

	// Evict drops the account's in-memory index; the persisted blob stays.
	Evict(accountID string)
}

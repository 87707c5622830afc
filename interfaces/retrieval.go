package interfaces

import (
	"context"

	"github.com/inboxia/mailcore/dto"
)

// RetrievalService assembles ranked context documents for the assistant.
type RetrievalService interface {
	// HybridSearch embeds the term and runs a combined lexical + vector
	// query against the account's index.
	HybridSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error)

	// LexicalSearch runs a keyword-only lookup.
	LexicalSearch(ctx context.Context, accountID, term string) ([]dto.SearchHit, error)
}

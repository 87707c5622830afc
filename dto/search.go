package dto

// IndexedDocument is the unit stored in the per-account search index. Created
// once per email and never mutated; a changed email requires delete+reinsert.
type IndexedDocument struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	RawBody    string    `json:"rawBody"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	SentAt     string    `json:"sentAt"`
	ThreadID   string    `json:"threadId"`
	Embeddings []float32 `json:"embeddings"`
}

// SearchHit is one ranked result from a lexical or hybrid query.
type SearchHit struct {
	Document IndexedDocument `json:"document"`
	// Score is the combined ranking score, higher sorts first.
	Score float64 `json:"score"`
	// Similarity is the cosine similarity of the vector match; zero for
	// purely lexical hits.
	Similarity float64 `json:"similarity"`
}

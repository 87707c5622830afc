package search

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/inboxia/mailcore/dto"
)

const (
	// similarityFloor is the hard cutoff for vector matches. Hybrid queries
	// never return a hit below it, whatever its lexical score.
	similarityFloor = 0.8

	// maxResults caps every ranked query.
	maxResults = 10

	// lexicalWeight scales the lexical component when combined with cosine
	// similarity in a hybrid score.
	lexicalWeight = 0.25
)

// accountIndex is one account's in-memory index. Callers hold the lock for
// the whole of every operation; the index itself does no locking.
type accountIndex struct {
	mu         sync.Mutex
	dimensions int
	documents  []dto.IndexedDocument
}

func newAccountIndex(dimensions int) *accountIndex {
	return &accountIndex{
		dimensions: dimensions,
		documents:  make([]dto.IndexedDocument, 0),
	}
}

func fromSnapshot(snapshot *indexSnapshot) *accountIndex {
	idx := newAccountIndex(snapshot.Dimensions)
	if snapshot.Documents != nil {
		idx.documents = snapshot.Documents
	}
	return idx
}

func (idx *accountIndex) snapshot() *indexSnapshot {
	return &indexSnapshot{
		Version:    blobVersion,
		Dimensions: idx.dimensions,
		Documents:  idx.documents,
	}
}

func (idx *accountIndex) insert(doc dto.IndexedDocument) {
	for i := range idx.documents {
		if idx.documents[i].ID == doc.ID {
			idx.documents[i] = doc
			return
		}
	}
	idx.documents = append(idx.documents, doc)
}

func (idx *accountIndex) delete(docID string) bool {
	for i := range idx.documents {
		if idx.documents[i].ID == docID {
			idx.documents = append(idx.documents[:i], idx.documents[i+1:]...)
			return true
		}
	}
	return false
}

func (idx *accountIndex) has(docID string) bool {
	for i := range idx.documents {
		if idx.documents[i].ID == docID {
			return true
		}
	}
	return false
}

// count runs a zero-term query with the result cap lifted; every document
// matches an empty term.
func (idx *accountIndex) count() int {
	return len(idx.lexicalHits(""))
}

// lexicalHits collects the unranked matches for a term. An empty term
// matches everything with a zero score.
func (idx *accountIndex) lexicalHits(term string) []dto.SearchHit {
	tokens := tokenize(term)

	hits := make([]dto.SearchHit, 0)
	for i := range idx.documents {
		score := lexicalScore(&idx.documents[i], tokens)
		if len(tokens) > 0 && score == 0 {
			continue
		}
		hits = append(hits, dto.SearchHit{
			Document: idx.documents[i],
			Score:    score,
		})
	}

	return hits
}

// lexicalSearch ranks documents by term token overlap across the text fields.
func (idx *accountIndex) lexicalSearch(term string) []dto.SearchHit {
	return rank(idx.lexicalHits(term))
}

// hybridSearch combines lexical relevance with cosine similarity. Documents
// below the similarity floor are discarded before ranking.
func (idx *accountIndex) hybridSearch(term string, vector []float32) []dto.SearchHit {
	tokens := tokenize(term)

	hits := make([]dto.SearchHit, 0)
	for i := range idx.documents {
		similarity := cosineSimilarity(idx.documents[i].Embeddings, vector)
		if similarity < similarityFloor {
			continue
		}
		score := similarity + lexicalWeight*lexicalScore(&idx.documents[i], tokens)
		hits = append(hits, dto.SearchHit{
			Document:   idx.documents[i],
			Score:      score,
			Similarity: similarity,
		})
	}

	return rank(hits)
}

// rank sorts by score descending, ties broken by document id for stable
// output, and applies the result cap.
func rank(hits []dto.SearchHit) []dto.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits
}

// lexicalScore counts query token hits over the document's text fields, with
// the title weighted above body and participants.
func lexicalScore(doc *dto.IndexedDocument, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}

	title := strings.ToLower(doc.Title)
	body := strings.ToLower(doc.Body)
	from := strings.ToLower(doc.From)
	to := strings.ToLower(strings.Join(doc.To, " "))

	var score float64
	for _, token := range tokens {
		if strings.Contains(title, token) {
			score += 2.0
		}
		if strings.Contains(body, token) {
			score += 1.0
		}
		if strings.Contains(from, token) || strings.Contains(to, token) {
			score += 1.5
		}
	}

	return score / float64(len(tokens))
}

func tokenize(term string) []string {
	fields := strings.Fields(strings.ToLower(term))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.Trim(field, ".,;:!?\"'()[]<>")
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

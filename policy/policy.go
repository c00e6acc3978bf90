// Package policy defines the domain types shared by the retrieval backends:
// evidence chunks, document collections and the Retriever capability.
package policy

import "context"

// Chunk is one retrieved unit of supporting policy text.
type Chunk struct {
	// Content is the chunk body.
	Content string `json:"content"`
	// Source identifies the originating policy document.
	Source string `json:"source"`
	// Score is the relevance score in [0, 1].
	Score float64 `json:"score"`
	// Highlight is the plain-text highlighted excerpt, if the backend
	// provided one.
	Highlight string `json:"highlight,omitempty"`
	// HighlightTerms lists the terms the backend emphasized in the
	// highlight markup.
	HighlightTerms []string `json:"highlight_terms,omitempty"`
}

// Collection is a named, searchable group of indexed policy documents.
type Collection struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Insurer string `json:"insurer,omitempty"`
}

// RetrievalOptions tune a retrieval call. Zero values fall back to the
// backend's defaults.
type RetrievalOptions struct {
	SimilarityThreshold    float64
	VectorSimilarityWeight float64
	TopK                   int
	PageSize               int
}

// Retriever is the contract the recommendation pipeline and the dialogue's
// evidence check consume.
//
// Implementations degrade rather than fail: after exhausting retries they
// log the cause and return an empty slice with a nil error, so retrieval
// problems surface as "no evidence found" and never abort a dialogue. The
// error return exists for callers that construct requests incorrectly and
// for future backends with different semantics.
type Retriever interface {
	// ListCollections returns the searchable collections, optionally
	// filtered by name.
	ListCollections(ctx context.Context, nameFilter string) ([]Collection, error)

	// Retrieve returns chunks relevant to query across the given
	// collections, ordered by descending score. An empty collectionIDs
	// returns an empty result without contacting the backend.
	Retrieve(ctx context.Context, collectionIDs []string, query string, opts RetrievalOptions) ([]Chunk, error)
}

// CollectionIDs extracts the IDs from a collection list.
func CollectionIDs(collections []Collection) []string {
	ids := make([]string, 0, len(collections))
	for _, c := range collections {
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

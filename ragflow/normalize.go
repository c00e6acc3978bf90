package ragflow

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/insurlab/advisor/policy"
)

// Backend variants disagree on both envelope and field names. Chunks may
// arrive as {code, data: {chunks: [...]}}, {chunks: [...]} or a bare array;
// chunk fields vary between content/content_with_weight,
// document_keyword/docnm_kwd and similarity/score. Everything normalizes to
// the canonical policy.Chunk; unknown or missing fields default to empty
// values instead of erroring.

type rawChunk struct {
	Content           string  `json:"content"`
	ContentWithWeight string  `json:"content_with_weight"`
	DocumentKeyword   string  `json:"document_keyword"`
	DocnmKwd          string  `json:"docnm_kwd"`
	DocumentName      string  `json:"document_name"`
	Source            string  `json:"source"`
	Similarity        float64 `json:"similarity"`
	Score             float64 `json:"score"`
	Highlight         string  `json:"highlight"`
}

func (r rawChunk) toChunk() policy.Chunk {
	content := firstNonEmpty(r.Content, r.ContentWithWeight)
	source := firstNonEmpty(r.DocumentKeyword, r.DocnmKwd, r.DocumentName, r.Source)

	score := r.Similarity
	if score == 0 {
		score = r.Score
	}
	score = clampScore(score)

	highlight, terms := policy.NormalizeHighlight(r.Highlight)

	return policy.Chunk{
		Content:        content,
		Source:         source,
		Score:          score,
		Highlight:      highlight,
		HighlightTerms: terms,
	}
}

type chunkEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Chunks  []rawChunk      `json:"chunks"`
}

type chunkData struct {
	Chunks []rawChunk `json:"chunks"`
}

// normalizeChunks parses any known chunk response shape into canonical
// chunks sorted by descending score.
func normalizeChunks(payload []byte) ([]policy.Chunk, error) {
	var raws []rawChunk

	// Bare array first.
	if err := json.Unmarshal(payload, &raws); err != nil {
		var envelope chunkEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("malformed retrieval response: %w", err)
		}
		if envelope.Code != 0 {
			return nil, fmt.Errorf("retrieval backend returned code %d: %s", envelope.Code, envelope.Message)
		}

		raws = envelope.Chunks
		if len(envelope.Data) > 0 {
			var data chunkData
			if err := json.Unmarshal(envelope.Data, &data); err == nil && len(data.Chunks) > 0 {
				raws = data.Chunks
			}
		}
	}

	chunks := make([]policy.Chunk, 0, len(raws))
	for _, raw := range raws {
		chunks = append(chunks, raw.toChunk())
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks, nil
}

type rawCollection struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Insurer string `json:"insurer"`
}

type collectionEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type collectionItems struct {
	Items []rawCollection `json:"items"`
}

// normalizeCollections parses any known dataset listing shape: a bare
// array, {data: [...]}, or {data: {items: [...]}}.
func normalizeCollections(payload []byte) ([]policy.Collection, error) {
	var raws []rawCollection

	if err := json.Unmarshal(payload, &raws); err != nil {
		var envelope collectionEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			return nil, fmt.Errorf("malformed datasets response: %w", err)
		}
		if envelope.Code != 0 {
			return nil, fmt.Errorf("datasets backend returned code %d: %s", envelope.Code, envelope.Message)
		}

		if len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, &raws); err != nil {
				var items collectionItems
				if err := json.Unmarshal(envelope.Data, &items); err != nil {
					return nil, fmt.Errorf("malformed datasets payload: %w", err)
				}
				raws = items.Items
			}
		}
	}

	collections := make([]policy.Collection, 0, len(raws))
	for _, raw := range raws {
		collections = append(collections, policy.Collection{
			ID:      raw.ID,
			Name:    raw.Name,
			Insurer: raw.Insurer,
		})
	}
	return collections, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

package graphdb

import (
	"fmt"
	"strconv"

	"github.com/insurlab/advisor/policy"
)

// GRAPH.QUERY replies are nested arrays: [header, rows, statistics]. Only
// the row section matters here; values arrive as strings, integers or
// floats depending on server version, so conversion is defensive
// throughout.

func parseResultRows(reply any) ([][]any, error) {
	sections, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected graph reply type %T", reply)
	}
	if len(sections) < 2 {
		// Header-only reply: no rows matched.
		return nil, nil
	}

	rawRows, ok := sections[1].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected graph row section type %T", sections[1])
	}

	rows := make([][]any, 0, len(rawRows))
	for _, rawRow := range rawRows {
		if row, ok := rawRow.([]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// rowsToChunks converts [text, source, score, highlight] rows.
func rowsToChunks(rows [][]any) []policy.Chunk {
	chunks := make([]policy.Chunk, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}

		content := asString(row[0])
		if content == "" {
			continue
		}

		chunk := policy.Chunk{
			Content: content,
			Source:  asString(row[1]),
			Score:   clampScore(asFloat(row[2])),
		}
		if len(row) > 3 {
			chunk.Highlight, chunk.HighlightTerms = policy.NormalizeHighlight(asString(row[3]))
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// rowsToCollections converts [id, name, insurer] rows.
func rowsToCollections(rows [][]any) []policy.Collection {
	collections := make([]policy.Collection, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		collection := policy.Collection{
			ID:   asString(row[0]),
			Name: asString(row[1]),
		}
		if len(row) > 2 {
			collection.Insurer = asString(row[2])
		}
		if collection.ID != "" {
			collections = append(collections, collection)
		}
	}
	return collections
}

func asString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []byte:
		return string(value)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", value)
	}
}

func asFloat(v any) float64 {
	switch value := v.(type) {
	case float64:
		return value
	case int64:
		return float64(value)
	case string:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Full-text relevance scores are unbounded; squash them into [0, 1] so the
// canonical chunk contract holds across backends.
func clampScore(score float64) float64 {
	if score <= 0 {
		return 0
	}
	if score >= 1 {
		return 1
	}
	return score
}

package retrieval

import (
	"context"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

// FallbackSearcher is a case-insensitive substring scan used when vector search
// yields nothing.
type FallbackSearcher struct {
	scanner ChunkScanner
}

func NewFallbackSearcher(scanner ChunkScanner) *FallbackSearcher {
	return &FallbackSearcher{scanner: scanner}
}

// Search returns up to limit chunks, in storage order, whose text contains the
// query and whose metadata matches the filter. Results carry a zero score.
func (f *FallbackSearcher) Search(ctx context.Context, query string, filter Filter, limit int) ([]SearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 || f.scanner == nil {
		return nil, nil
	}
	filter = filter.Normalize()
	var out []SearchResult
	err := f.scanner.ScanChunks(ctx, func(chunk model.Chunk) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !strings.Contains(strings.ToLower(chunk.Content), needle) {
			return true, nil
		}
		if !filter.Match(chunk.Metadata) {
			return true, nil
		}
		out = append(out, SearchResult{Chunk: chunk})
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

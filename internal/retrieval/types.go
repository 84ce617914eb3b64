package retrieval

import (
	"context"
	"strings"

	"github.com/xxxsen/studymate/internal/model"
)

const (
	SearchTypeVector   = "vector"
	SearchTypeFallback = "fallback_text"

	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// SearchResult is a chunk scored against one query variant.
type SearchResult struct {
	Chunk      model.Chunk
	Score      float64
	QueryIndex int
}

// Filter restricts results by chunk metadata. Empty fields match everything.
type Filter struct {
	CourseCode string `json:"courseCode,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Level      string `json:"level,omitempty"`
	Author     string `json:"author,omitempty"`
}

func (f Filter) Normalize() Filter {
	return Filter{
		CourseCode: strings.TrimSpace(f.CourseCode),
		Topic:      strings.TrimSpace(f.Topic),
		Level:      strings.TrimSpace(f.Level),
		Author:     strings.TrimSpace(f.Author),
	}
}

func (f Filter) IsEmpty() bool {
	n := f.Normalize()
	return n.CourseCode == "" && n.Topic == "" && n.Level == "" && n.Author == ""
}

// Match reports whether the metadata satisfies every non-empty field. Author is a
// case-insensitive substring match against the professor; the rest are exact.
func (f Filter) Match(m model.ChunkMetadata) bool {
	n := f.Normalize()
	if n.CourseCode != "" && strings.TrimSpace(m.CourseCode) != n.CourseCode {
		return false
	}
	if n.Topic != "" && strings.TrimSpace(m.Topic) != n.Topic {
		return false
	}
	if n.Level != "" && strings.TrimSpace(m.Level) != n.Level {
		return false
	}
	if n.Author != "" && !strings.Contains(strings.ToLower(m.Professor), strings.ToLower(n.Author)) {
		return false
	}
	return true
}

// VectorStore ranks stored chunks by similarity to an embedding.
type VectorStore interface {
	FindSimilar(ctx context.Context, embedding []float32, filter Filter, limit int) ([]SearchResult, error)
}

// ChunkScanner walks every stored chunk in storage order until fn returns false.
type ChunkScanner interface {
	ScanChunks(ctx context.Context, fn func(chunk model.Chunk) (bool, error)) error
}

// Embedder turns query texts into vectors, one per input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

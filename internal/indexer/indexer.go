package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
	"github.com/xxxsen/studymate/internal/retrieval"
)

// ChunkWriter atomically replaces the chunks stored for a document.
type ChunkWriter interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []model.Chunk, indexedAt int64) error
}

type Indexer struct {
	splitter *Splitter
	embedder retrieval.Embedder
	writer   ChunkWriter
	now      func() time.Time
}

func New(splitter *Splitter, embedder retrieval.Embedder, writer ChunkWriter) *Indexer {
	return &Indexer{splitter: splitter, embedder: embedder, writer: writer, now: time.Now}
}

// Index splits and embeds a document, then swaps its stored chunks. Nothing is
// written unless every chunk was embedded.
func (i *Indexer) Index(ctx context.Context, doc *model.Document) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	pieces := i.splitter.Split(doc.Content)
	if len(pieces) == 0 {
		return 0, fmt.Errorf("document has no indexable content: %w", appErr.ErrInvalid)
	}
	texts := make([]string, 0, len(pieces))
	for _, p := range pieces {
		texts = append(texts, p.Content)
	}
	start := i.now()
	vectors, err := i.embedder.EmbedBatch(ctx, texts, retrieval.TaskTypeDocument)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	base := doc.ChunkMetadata()
	now := i.now().Unix()
	chunks := make([]model.Chunk, 0, len(pieces))
	for idx, p := range pieces {
		meta := base
		meta.Section = p.Section
		meta.ChunkIndex = idx
		meta.TotalChunks = len(pieces)
		chunks = append(chunks, model.Chunk{
			ID:         model.ChunkID(doc.ID, idx),
			DocumentID: doc.ID,
			Content:    p.Content,
			Embedding:  vectors[idx],
			Metadata:   model.NormalizeMetadata(meta),
			Ctime:      now,
		})
	}
	if err := i.writer.ReplaceForDocument(ctx, doc.ID, chunks, now); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	logger.Info("document indexed",
		zap.Int("chunks", len(chunks)),
		zap.Duration("embed_cost", i.now().Sub(start)),
	)
	return len(chunks), nil
}

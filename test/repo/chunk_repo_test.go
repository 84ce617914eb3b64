package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/repo"
	"github.com/xxxsen/studymate/internal/retrieval"
	"github.com/xxxsen/studymate/test/testutil"
)

func buildChunks(doc *model.Document, texts []string, vectors [][]float32) []model.Chunk {
	now := time.Now().Unix()
	out := make([]model.Chunk, 0, len(texts))
	for i, text := range texts {
		meta := doc.ChunkMetadata()
		meta.ChunkIndex = i
		meta.TotalChunks = len(texts)
		out = append(out, model.Chunk{
			ID:         model.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Content:    text,
			Embedding:  vectors[i],
			Metadata:   meta,
			Ctime:      now,
		})
	}
	return out
}

func TestChunkRepoReplaceAndSearch(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)

	chem := newDocument("CHEM101", "acids")
	math := newDocument("MATH201", "limits")
	math.Professor = "Dr. Alan"
	require.NoError(t, docs.Create(ctx, chem))
	require.NoError(t, docs.Create(ctx, math))

	require.NoError(t, chunks.ReplaceForDocument(ctx, chem.ID,
		buildChunks(chem, []string{"acids donate protons", "titration measures concentration"}, [][]float32{{1, 0, 0}, {0.8, 0.6, 0}}),
		time.Now().Unix()))
	require.NoError(t, chunks.ReplaceForDocument(ctx, math.ID,
		buildChunks(math, []string{"limits describe behaviour"}, [][]float32{{0, 0, 1}}),
		time.Now().Unix()))

	results, err := chunks.FindSimilar(ctx, []float32{1, 0, 0}, retrieval.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "acids donate protons", results[0].Chunk.Content)
	require.InDelta(t, 1.0, results[0].Score, 1e-6)
	require.InDelta(t, 0.0, results[2].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		require.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	filtered, err := chunks.FindSimilar(ctx, []float32{1, 0, 0}, retrieval.Filter{Author: "alan"}, 10)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, math.ID, filtered[0].Chunk.DocumentID)

	other, err := chunks.FindSimilar(ctx, []float32{1, 0}, retrieval.Filter{}, 10)
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, chunks.ReplaceForDocument(ctx, chem.ID,
		buildChunks(chem, []string{"rewritten"}, [][]float32{{1, 0, 0}}),
		time.Now().Unix()))
	n, err := chunks.CountByDocument(ctx, chem.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	var scanned []string
	require.NoError(t, chunks.ScanChunks(ctx, func(c model.Chunk) (bool, error) {
		scanned = append(scanned, c.ID)
		return true, nil
	}))
	require.Len(t, scanned, 2)

	require.NoError(t, docs.Delete(ctx, math.ID))
	n, err = chunks.CountByDocument(ctx, math.ID)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

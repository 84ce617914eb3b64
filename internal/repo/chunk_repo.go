package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	"github.com/xxxsen/studymate/internal/retrieval"
)

const chunkInsertBatch = 100

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForDocument swaps every chunk of a document in one transaction and
// records the index time on the document.
func (r *ChunkRepo) ReplaceForDocument(ctx context.Context, documentID string, chunks []model.Chunk, indexedAt int64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sqlStr, args := dbutil.Finalize("DELETE FROM document_chunks WHERE document_id = ?", []interface{}{documentID})
	if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	for start := 0; start < len(chunks); start += chunkInsertBatch {
		end := min(start+chunkInsertBatch, len(chunks))
		rows := make([]map[string]interface{}, 0, end-start)
		for _, c := range chunks[start:end] {
			meta, mErr := json.Marshal(c.Metadata)
			if mErr != nil {
				return fmt.Errorf("encode chunk metadata: %w", mErr)
			}
			rows = append(rows, map[string]interface{}{
				"id":          c.ID,
				"document_id": documentID,
				"chunk_index": c.Metadata.ChunkIndex,
				"content":     c.Content,
				"metadata":    string(meta),
				"embedding":   pgvector.NewVector(c.Embedding),
				"ctime":       c.Ctime,
			})
		}
		sqlStr, args, bErr := builder.BuildInsert("document_chunks", rows)
		if bErr != nil {
			return bErr
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	sqlStr, args = dbutil.Finalize("UPDATE documents SET indexed_at = ? WHERE id = ?", []interface{}{indexedAt, documentID})
	if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return tx.Commit()
}

// FindSimilar ranks chunks by cosine distance. Chunks stored with a different
// dimension are never compared.
func (r *ChunkRepo) FindSimilar(ctx context.Context, embedding []float32, filter retrieval.Filter, limit int) ([]retrieval.SearchResult, error) {
	if limit <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(embedding)
	conds := []string{"vector_dims(embedding) = ?"}
	args := []interface{}{vec, len(embedding)}
	filter = filter.Normalize()
	if filter.CourseCode != "" {
		conds = append(conds, "metadata->>'course_code' = ?")
		args = append(args, filter.CourseCode)
	}
	if filter.Topic != "" {
		conds = append(conds, "metadata->>'topic' = ?")
		args = append(args, filter.Topic)
	}
	if filter.Level != "" {
		conds = append(conds, "metadata->>'level' = ?")
		args = append(args, filter.Level)
	}
	if filter.Author != "" {
		conds = append(conds, "metadata->>'professor' ILIKE ?")
		args = append(args, "%"+likeEscaper.Replace(filter.Author)+"%")
	}
	args = append(args, vec, limit)
	query := `
		SELECT id, document_id, content, metadata, embedding, ctime,
			GREATEST(0, LEAST(1, 1 - (embedding <=> ?))) AS similarity
		FROM document_chunks
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY embedding <=> ?
		LIMIT ?`
	sqlStr, args := dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []retrieval.SearchResult
	for rows.Next() {
		var (
			c     model.Chunk
			meta  []byte
			emb   pgvector.Vector
			score float64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &meta, &emb, &c.Ctime, &score); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk metadata %s: %w", c.ID, err)
		}
		c.Embedding = emb.Slice()
		results = append(results, retrieval.SearchResult{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// ScanChunks streams chunks in storage order without loading embeddings.
func (r *ChunkRepo) ScanChunks(ctx context.Context, fn func(chunk model.Chunk) (bool, error)) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, document_id, content, metadata, ctime
		FROM document_chunks
		ORDER BY ctime ASC, document_id ASC, chunk_index ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c    model.Chunk
			meta []byte
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &meta, &c.Ctime); err != nil {
			return err
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return fmt.Errorf("decode chunk metadata %s: %w", c.ID, err)
		}
		next, err := fn(c)
		if err != nil {
			return err
		}
		if !next {
			return nil
		}
	}
	return rows.Err()
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, documentID string) (int, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM document_chunks WHERE document_id = ?", []interface{}{documentID})
	var n int
	err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n)
	return n, err
}

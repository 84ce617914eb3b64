package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/pkg/dbutil"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

const (
	DocumentStateNormal  = 1
	DocumentStateDeleted = 2
)

var documentColumns = []string{
	"id", "title", "course_code", "course_title", "professor", "topic", "level",
	"document_type", "date", "content", "state", "ctime", "mtime", "indexed_at",
}

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	data := map[string]interface{}{
		"id":            doc.ID,
		"title":         doc.Title,
		"course_code":   doc.CourseCode,
		"course_title":  doc.CourseTitle,
		"professor":     doc.Professor,
		"topic":         doc.Topic,
		"level":         doc.Level,
		"document_type": doc.DocumentType,
		"date":          doc.Date,
		"content":       doc.Content,
		"state":         doc.State,
		"ctime":         doc.Ctime,
		"mtime":         doc.Mtime,
		"indexed_at":    doc.IndexedAt,
	}
	sqlStr, args, err := builder.BuildInsert("documents", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":    id,
		"state": DocumentStateNormal,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, documentColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	return scanDocument(rows)
}

func (r *DocumentRepo) ListIDs(ctx context.Context) ([]string, error) {
	where := map[string]interface{}{
		"state":    DocumentStateNormal,
		"_orderby": "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where, []string{"id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListStale returns documents modified after their last successful index.
func (r *DocumentRepo) ListStale(ctx context.Context, limit int) ([]string, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id FROM documents WHERE state = ? AND mtime > indexed_at ORDER BY mtime ASC LIMIT ?",
		[]interface{}{DocumentStateNormal, limit},
	)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DocumentRepo) ListTopics(ctx context.Context, courseCode string) ([]string, error) {
	query := "SELECT DISTINCT topic FROM documents WHERE state = ? AND topic <> ''"
	args := []interface{}{DocumentStateNormal}
	if courseCode != "" {
		query += " AND course_code = ?"
		args = append(args, courseCode)
	}
	query += " ORDER BY topic ASC"
	sqlStr, args := dbutil.Finalize(query, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	topics := []string{}
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (r *DocumentRepo) MarkIndexed(ctx context.Context, id string, indexedAt int64) error {
	sqlStr, args, err := builder.BuildUpdate("documents",
		map[string]interface{}{"id": id},
		map[string]interface{}{"indexed_at": indexedAt},
	)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete("documents", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) Stats(ctx context.Context) (*model.IndexStats, error) {
	sqlStr, args := dbutil.Finalize(`
		SELECT
			(SELECT COUNT(*) FROM documents WHERE state = ?),
			(SELECT COUNT(*) FROM documents WHERE state = ? AND indexed_at > 0),
			(SELECT COUNT(*) FROM document_chunks)
	`, []interface{}{DocumentStateNormal, DocumentStateNormal})
	var stats model.IndexStats
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&stats.TotalDocuments, &stats.IndexedDocuments, &stats.TotalChunks); err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanDocument(rows *sql.Rows) (*model.Document, error) {
	var doc model.Document
	if err := rows.Scan(
		&doc.ID, &doc.Title, &doc.CourseCode, &doc.CourseTitle, &doc.Professor, &doc.Topic, &doc.Level,
		&doc.DocumentType, &doc.Date, &doc.Content, &doc.State, &doc.Ctime, &doc.Mtime, &doc.IndexedAt,
	); err != nil {
		return nil, err
	}
	return &doc, nil
}

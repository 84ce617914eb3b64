package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/filestore"
	"github.com/xxxsen/studymate/internal/model"
	appErr "github.com/xxxsen/studymate/internal/pkg/errors"
)

const maxDocumentChars = 2 << 20

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListStale(ctx context.Context, limit int) ([]string, error)
	ListTopics(ctx context.Context, courseCode string) ([]string, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.IndexStats, error)
}

type DocumentIndexer interface {
	Index(ctx context.Context, doc *model.Document) (int, error)
}

type DocumentConfig struct {
	IndexTimeout time.Duration
	ReindexDelay time.Duration
}

type CreateDocumentInput struct {
	Title        string `json:"title"`
	CourseCode   string `json:"course_code"`
	CourseTitle  string `json:"course_title"`
	Professor    string `json:"professor"`
	Topic        string `json:"topic"`
	Level        string `json:"level"`
	DocumentType string `json:"document_type"`
	Date         string `json:"date"`
	Content      string `json:"content"`
}

type IndexResult struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
}

type ReindexReport struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// DocumentService owns the write path: documents are archived, stored and
// indexed with at most one index run per document at a time.
type DocumentService struct {
	docs    DocumentStore
	indexer DocumentIndexer
	files   filestore.Store
	locks   *keyLock
	cfg     DocumentConfig
}

func NewDocumentService(docs DocumentStore, indexer DocumentIndexer, files filestore.Store, cfg DocumentConfig) *DocumentService {
	return &DocumentService{docs: docs, indexer: indexer, files: files, locks: newKeyLock(), cfg: cfg}
}

func (s *DocumentService) Create(ctx context.Context, in CreateDocumentInput) (*model.Document, *IndexResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.CourseCode = strings.TrimSpace(in.CourseCode)
	if in.Title == "" || in.CourseCode == "" || strings.TrimSpace(in.Content) == "" {
		return nil, nil, fmt.Errorf("title, course_code and content are required: %w", appErr.ErrInvalid)
	}
	if utf8.RuneCountInString(in.Content) > maxDocumentChars {
		return nil, nil, fmt.Errorf("document too large: %w", appErr.ErrInvalid)
	}
	now := time.Now().Unix()
	doc := &model.Document{
		ID:           newID(),
		Title:        in.Title,
		CourseCode:   in.CourseCode,
		CourseTitle:  strings.TrimSpace(in.CourseTitle),
		Professor:    strings.TrimSpace(in.Professor),
		Topic:        strings.TrimSpace(in.Topic),
		Level:        strings.TrimSpace(in.Level),
		DocumentType: strings.TrimSpace(in.DocumentType),
		Date:         strings.TrimSpace(in.Date),
		Content:      in.Content,
		Ctime:        now,
		Mtime:        now,
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", doc.ID))
	if s.files != nil {
		if err := s.files.Save(ctx, filestore.DocumentKey(doc.ID), strings.NewReader(doc.Content), int64(len(doc.Content))); err != nil {
			logger.Warn("archive document failed", zap.String("store", s.files.Type()), zap.Error(err))
		}
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	res, err := s.index(ctx, doc)
	if err != nil {
		logger.Error("index new document failed, left for reindex", zap.Error(err))
		return doc, nil, err
	}
	return doc, res, nil
}

// Index rebuilds the chunks of one document.
func (s *DocumentService) Index(ctx context.Context, id string) (*IndexResult, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.index(ctx, doc)
}

func (s *DocumentService) index(ctx context.Context, doc *model.Document) (*IndexResult, error) {
	unlock := s.locks.Lock(doc.ID)
	defer unlock()
	if s.cfg.IndexTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.IndexTimeout)
		defer cancel()
	}
	n, err := s.indexer.Index(ctx, doc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("index %s: %w", doc.ID, appErr.ErrTimeout)
		}
		return nil, fmt.Errorf("index %s: %w", doc.ID, err)
	}
	return &IndexResult{DocumentID: doc.ID, Chunks: n}, nil
}

// ReindexAll rebuilds every document one after another. Failures are reported
// and do not stop the run.
func (s *DocumentService) ReindexAll(ctx context.Context) (*ReindexReport, error) {
	ids, err := s.docs.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.reindex(ctx, ids)
}

// ReindexStale rebuilds up to limit documents edited since their last index.
func (s *DocumentService) ReindexStale(ctx context.Context, limit int) (int, error) {
	ids, err := s.docs.ListStale(ctx, limit)
	if err != nil {
		return 0, err
	}
	report, err := s.reindex(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(report.Failed) > 0 {
		return report.Succeeded, fmt.Errorf("reindex failed for %d documents", len(report.Failed))
	}
	return report.Succeeded, nil
}

func (s *DocumentService) reindex(ctx context.Context, ids []string) (*ReindexReport, error) {
	logger := logutil.GetLogger(ctx)
	report := &ReindexReport{Total: len(ids), Failed: []string{}}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.Index(ctx, id); err != nil {
			logger.Error("reindex document failed", zap.String("doc_id", id), zap.Error(err))
			report.Failed = append(report.Failed, id)
		} else {
			report.Succeeded++
		}
		if s.cfg.ReindexDelay > 0 && i < len(ids)-1 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(s.cfg.ReindexDelay):
			}
		}
	}
	logger.Info("reindex finished", zap.Int("total", report.Total), zap.Int("succeeded", report.Succeeded), zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *DocumentService) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	if s.files != nil {
		if err := s.files.Delete(ctx, filestore.DocumentKey(id)); err != nil {
			logutil.GetLogger(ctx).Warn("remove archived document failed", zap.String("doc_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *DocumentService) Stats(ctx context.Context) (*model.IndexStats, error) {
	return s.docs.Stats(ctx)
}

func (s *DocumentService) Topics(ctx context.Context, courseCode string) ([]string, error) {
	return s.docs.ListTopics(ctx, strings.TrimSpace(courseCode))
}

package model

import (
	"fmt"
	"strings"
)

// ChunkMetadata is the single metadata shape stored with every chunk.
type ChunkMetadata struct {
	CourseCode   string `json:"course_code,omitempty"`
	CourseTitle  string `json:"course_title,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Professor    string `json:"professor,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Level        string `json:"level,omitempty"`
	Section      string `json:"section,omitempty"`
	Title        string `json:"title,omitempty"`
	Date         string `json:"date,omitempty"`
	Source       string `json:"source,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
}

type Chunk struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
	Ctime      int64         `json:"ctime"`
}

func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// NormalizeMetadata trims every field and derives Source from the professor
// when it is missing.
func NormalizeMetadata(m ChunkMetadata) ChunkMetadata {
	m.CourseCode = strings.TrimSpace(m.CourseCode)
	m.CourseTitle = strings.TrimSpace(m.CourseTitle)
	m.Topic = strings.TrimSpace(m.Topic)
	m.Professor = strings.TrimSpace(m.Professor)
	m.DocumentType = strings.TrimSpace(m.DocumentType)
	m.Level = strings.TrimSpace(m.Level)
	m.Section = strings.TrimSpace(m.Section)
	m.Title = strings.TrimSpace(m.Title)
	m.Date = strings.TrimSpace(m.Date)
	m.Source = strings.TrimSpace(m.Source)
	if m.Source == "" && m.Professor != "" {
		m.Source = m.Professor + "'s notes"
	}
	return m
}

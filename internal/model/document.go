package model

type Document struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CourseCode   string `json:"course_code"`
	CourseTitle  string `json:"course_title"`
	Professor    string `json:"professor"`
	Topic        string `json:"topic"`
	Level        string `json:"level"`
	DocumentType string `json:"document_type"`
	Date         string `json:"date"`
	Content      string `json:"content,omitempty"`
	State        int    `json:"state"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
	IndexedAt    int64  `json:"indexed_at"`
}

// ChunkMetadata builds the metadata shared by every chunk of the document.
func (d *Document) ChunkMetadata() ChunkMetadata {
	return NormalizeMetadata(ChunkMetadata{
		CourseCode:   d.CourseCode,
		CourseTitle:  d.CourseTitle,
		Topic:        d.Topic,
		Professor:    d.Professor,
		DocumentType: d.DocumentType,
		Level:        d.Level,
		Title:        d.Title,
		Date:         d.Date,
	})
}

type IndexStats struct {
	TotalDocuments   int64 `json:"total_documents"`
	IndexedDocuments int64 `json:"indexed_documents"`
	TotalChunks      int64 `json:"total_chunks"`
}

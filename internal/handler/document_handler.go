package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) Topics(c *gin.Context) {
	topics, err := h.documents.Topics(c.Request.Context(), c.Query("course_code"))
	if err != nil {
		handleError(c, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}
	response.Success(c, gin.H{"topics": topics})
}

func (h *DocumentHandler) Create(c *gin.Context) {
	var req service.CreateDocumentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "invalid request")
		return
	}
	doc, res, err := h.documents.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	doc.Content = ""
	response.Success(c, gin.H{"document": doc, "chunks": res.Chunks})
}

func (h *DocumentHandler) Reindex(c *gin.Context) {
	res, err := h.documents.Index(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *DocumentHandler) ReindexAll(c *gin.Context) {
	report, err := h.documents.ReindexAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, report)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documents.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

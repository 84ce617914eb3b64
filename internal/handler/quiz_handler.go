package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/pkg/response"
	"github.com/xxxsen/studymate/internal/service"
)

type QuizHandler struct {
	quizzes *service.QuizService
}

func NewQuizHandler(quizzes *service.QuizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) Generate(c *gin.Context) {
	var req service.QuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, "invalid request")
		return
	}
	result, err := h.quizzes.Generate(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *QuizHandler) Get(c *gin.Context) {
	q, err := h.quizzes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, q)
}

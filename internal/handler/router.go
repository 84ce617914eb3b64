package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/middleware"
	"github.com/xxxsen/studymate/internal/pkg/jwt"
)

type RouterDeps struct {
	Search    *SearchHandler
	Chat      *ChatHandler
	Quiz      *QuizHandler
	Documents *DocumentHandler
	Health    *HealthHandler
	JWTSecret []byte

	SearchWindow time.Duration
	ChatWindow   time.Duration
	QuizWindow   time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	searchLimit := middleware.RateLimit(deps.SearchWindow)
	api.POST("/search", searchLimit, deps.Search.Search)
	api.POST("/chat-search", searchLimit, deps.Search.ChatSearch)
	api.POST("/quiz-search", searchLimit, deps.Search.QuizSearch)

	api.POST("/chat", middleware.RateLimit(deps.ChatWindow), deps.Chat.Chat)
	api.POST("/quiz/generate", middleware.RateLimit(deps.QuizWindow), deps.Quiz.Generate)
	api.GET("/quizzes/:id", deps.Quiz.Get)

	api.GET("/documents/topics", deps.Documents.Topics)
	api.GET("/health", deps.Health.Health)

	admin := api.Group("/admin")
	admin.Use(middleware.JWTAuth(deps.JWTSecret, jwt.RoleAdmin))
	admin.POST("/documents", deps.Documents.Create)
	admin.POST("/documents/:id/reindex", deps.Documents.Reindex)
	admin.DELETE("/documents/:id", deps.Documents.Delete)
	admin.POST("/reindex", deps.Documents.ReindexAll)
	admin.GET("/index/stats", deps.Documents.Stats)
}

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kokoro-apps/empathy-diary/internal/ai"
	"github.com/kokoro-apps/empathy-diary/internal/common"
	"github.com/kokoro-apps/empathy-diary/internal/config"
	"github.com/kokoro-apps/empathy-diary/internal/diary"
	"github.com/kokoro-apps/empathy-diary/internal/httpapi/handlers"
	"github.com/kokoro-apps/empathy-diary/internal/httpapi/middleware"
	"github.com/kokoro-apps/empathy-diary/internal/store/redisstore"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, provider ai.Provider, publisher diary.JobPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, provider, publisher)

	r.GET("/ping", h.Ping)

	// register + auth
	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Diary (JWT required)
	authGroup.POST("/diary/entries", h.CreateDiaryEntry)
	authGroup.GET("/diary/entries", h.ListDiaryEntries)
	authGroup.PUT("/diary/entries/:id", h.UpdateDiaryEntry)
	authGroup.DELETE("/diary/entries/:id", h.DeleteDiaryEntry)
	authGroup.POST("/diary/entries/:id/empathy", h.RequestEmpathyReply)
	authGroup.GET("/diary/jobs/:id", h.GetEmpathyJob)
	authGroup.GET("/diary/responses/:id", h.GetAIResponse)

	// Chat (JWT required)
	authGroup.POST("/chat/sessions", h.CreateChatSession)
	authGroup.GET("/chat/sessions", h.ListChatSessions)
	authGroup.DELETE("/chat/sessions/:session_id", h.DeleteChatSession)
	authGroup.GET("/chat/sessions/:session_id/messages", h.ListChatMessages)
	authGroup.POST("/chat/messages", h.SendChatMessage)
	authGroup.POST("/chat/quote", h.StartQuotedConversation)
	authGroup.POST("/chat/conversations/save", h.SaveConversationAsDiary)
	authGroup.POST("/chat/messages/save", h.SaveMessageAsDiary)

	return r
}

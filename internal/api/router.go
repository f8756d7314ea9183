package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP routes onto a gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/chat", h.PlainChat)
		apiGroup.POST("/chat/stream", h.PlainChatStream)
		apiGroup.GET("/history", h.GetGlobalHistory)
		apiGroup.DELETE("/history", h.ClearGlobalHistory)

		apiGroup.POST("/characters", h.CreateCharacter)
		apiGroup.GET("/characters", h.ListCharacters)
		apiGroup.GET("/characters/:id", h.GetCharacter)
		apiGroup.DELETE("/characters/:id", h.DeleteCharacter)

		apiGroup.POST("/characters/:id/chat", h.Chat)
		apiGroup.POST("/characters/:id/chat/stream", h.ChatStream)

		apiGroup.GET("/characters/:id/relationship", h.GetRelationship)
		apiGroup.POST("/characters/:id/emotional-moment", h.RecordEmotionalMoment)

		apiGroup.GET("/characters/:id/history", h.GetHistory)
		apiGroup.DELETE("/characters/:id/history", h.ClearHistory)
	}

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package handler

import (
	"legal-rag-go/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总路由需要的全部处理器。
type Handlers struct {
	Chat         *ChatHandler
	Health       *HealthHandler
	Conversation *ConversationHandler
	QueryLog     *QueryLogHandler
}

// NewRouter 创建路由引擎并注册所有路由。
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestID(), middleware.CORS(), middleware.RequestLogger(), gin.Recovery())

	r.GET("/health", h.Health.Health)
	r.POST("/chat", h.Chat.Chat)
	r.GET("/chat/ws", h.Chat.Websocket)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/index/status", h.Health.IndexStatus)

		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("/:sessionId", h.Conversation.GetConversation)
			conversations.DELETE("/:sessionId", h.Conversation.DeleteConversationItem)
		}

		apiV1.GET("/query-logs", h.QueryLog.Recent)
	}
	return r
}

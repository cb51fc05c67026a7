package handler

import (
	"net/http"
	"strconv"

	"legal-rag-go/internal/service"
	"legal-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话历史相关的 API 请求。service 为 nil 表示未启用历史记录。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversation 处理 GET /api/v1/conversations/:sessionId。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "conversation history is disabled", "data": nil})
		return
	}
	history, err := h.service.History(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		log.Errorf("获取对话历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to retrieve conversation history", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": history})
}

// DeleteConversationItem 处理 DELETE /api/v1/conversations/:sessionId?query=...
func (h *ConversationHandler) DeleteConversationItem(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "conversation history is disabled", "data": nil})
		return
	}
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "query parameter is required", "data": nil})
		return
	}
	deleted, err := h.service.DeleteItem(c.Request.Context(), c.Param("sessionId"), query)
	if err != nil {
		log.Errorf("删除对话记录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to delete conversation item", "data": nil})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "conversation item not found", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// QueryLogHandler 处理查询审计记录的读取。service 为 nil 表示未启用审计。
type QueryLogHandler struct {
	service service.QueryLogService
}

// NewQueryLogHandler 创建一个新的 QueryLogHandler。
func NewQueryLogHandler(service service.QueryLogService) *QueryLogHandler {
	return &QueryLogHandler{service: service}
}

// Recent 处理 GET /api/v1/query-logs?limit=N。
func (h *QueryLogHandler) Recent(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "query audit log is disabled", "data": nil})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	logs, err := h.service.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("读取查询审计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "Failed to retrieve query logs", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": logs})
}

package handler

import (
	"net/http"

	"legal-rag-go/internal/corpus"

	"github.com/gin-gonic/gin"
)

// HealthHandler 提供存活检查与索引状态。
type HealthHandler struct {
	holder *corpus.Holder
}

// NewHealthHandler 创建一个新的 HealthHandler。
func NewHealthHandler(holder *corpus.Holder) *HealthHandler {
	return &HealthHandler{holder: holder}
}

// Health 处理 GET /health，始终返回 {"status":"ok"}。
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// IndexStatus 处理 GET /api/v1/index/status。
func (h *HealthHandler) IndexStatus(c *gin.Context) {
	snap := h.holder.Current()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"loaded": false}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"loaded": true, "documents": snap.Len(), "dim": snap.Dim()},
	})
}

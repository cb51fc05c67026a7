// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/service"
	"legal-rag-go/pkg/llm"
	"legal-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// Answerer 是问答服务的抽象。
type Answerer interface {
	Answer(ctx context.Context, req service.Request) *service.Response
}

// ChatHandler 处理问答请求（HTTP 与 WebSocket）。
type ChatHandler struct {
	answerer Answerer
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(answerer Answerer) *ChatHandler {
	return &ChatHandler{answerer: answerer}
}

// Chat 处理 POST /chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, badRequest("invalid request body: "+err.Error()))
		return
	}
	resp := h.answerer.Answer(c.Request.Context(), req)
	c.JSON(resp.Status, resp)
}

// Websocket 处理 GET /chat/ws：每条文本消息是一个问题（纯文本或 JSON），每个问题回复一条 JSON。
func (h *ChatHandler) Websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	sessionID := c.Query("session_id")
	log.Infof("WebSocket 连接已建立, session=%s", sessionID)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		req, err := parseWebsocketMessage(message, sessionID)
		var resp *service.Response
		if err != nil {
			resp = badRequest(err.Error())
		} else {
			resp = h.answerer.Answer(c.Request.Context(), req)
		}
		if err := conn.WriteJSON(resp); err != nil {
			log.Warnf("向 WebSocket 写入消息失败: %v", err)
			return
		}
	}
}

// parseWebsocketMessage 解析一条 WebSocket 消息：以 { 开头时按 JSON 解析，否则整条消息即问题。
func parseWebsocketMessage(message []byte, defaultSession string) (service.Request, error) {
	req := service.Request{SessionID: defaultSession}
	trimmed := strings.TrimSpace(string(message))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
			return req, errors.New("invalid message: " + err.Error())
		}
		if req.SessionID == "" {
			req.SessionID = defaultSession
		}
		return req, nil
	}
	req.Question = string(message)
	return req, nil
}

func badRequest(message string) *service.Response {
	return &service.Response{
		Citations:  []model.Citation{},
		Disclaimer: service.DisclaimerInformational,
		Error:      llm.KindBadRequest,
		Message:    message,
		Status:     http.StatusBadRequest,
	}
}

package service

import (
	"context"
	"time"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
)

// ConversationService 定义了对话业务逻辑的接口，按客户端提供的会话 ID 组织。
type ConversationService interface {
	History(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	Append(ctx context.Context, sessionID, question, answer string) error
	DeleteItem(ctx context.Context, sessionID, question string) (bool, error)
}

type conversationService struct {
	repo repository.ConversationRepository
	now  func() time.Time
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo, now: time.Now}
}

// History 返回会话的消息历史。
func (s *conversationService) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.repo.GetConversationHistory(ctx, sessionID)
}

// Append 追加一轮问答。
func (s *conversationService) Append(ctx context.Context, sessionID, question, answer string) error {
	history, err := s.repo.GetConversationHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	now := s.now()
	history = append(history,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	return s.repo.UpdateConversationHistory(ctx, sessionID, history)
}

// DeleteItem 删除第一条内容等于 question 的用户消息及紧随其后的回答，返回是否有删除。
func (s *conversationService) DeleteItem(ctx context.Context, sessionID, question string) (bool, error) {
	history, err := s.repo.GetConversationHistory(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for i, msg := range history {
		if msg.Role != "user" || msg.Content != question {
			continue
		}
		end := i + 1
		if end < len(history) && history[end].Role == "assistant" {
			end++
		}
		kept := append(append([]model.ChatMessage{}, history[:i]...), history[end:]...)
		return true, s.repo.UpdateConversationHistory(ctx, sessionID, kept)
	}
	return false, nil
}

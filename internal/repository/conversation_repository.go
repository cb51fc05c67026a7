package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"legal-rag-go/internal/model"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	conversationTTL     = 7 * 24 * time.Hour
	maxHistoryMessages  = 20
	conversationKeyBase = "conversation:%s"
)

// ConversationRepository 定义了对话历史记录的操作接口，按客户端会话 ID 存储。
type ConversationRepository interface {
	GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	UpdateConversationHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

// GetConversationHistory 从 Redis 获取对话历史记录。
func (r *redisConversationRepository) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	key := fmt.Sprintf(conversationKeyBase, sessionID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// UpdateConversationHistory 在 Redis 中覆盖写入对话历史，只保留最近 20 条。
func (r *redisConversationRepository) UpdateConversationHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	key := fmt.Sprintf(conversationKeyBase, sessionID)
	messages = TrimHistory(messages)
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}

// TrimHistory 截取最近的 maxHistoryMessages 条消息。
func TrimHistory(messages []model.ChatMessage) []model.ChatMessage {
	if len(messages) > maxHistoryMessages {
		return messages[len(messages)-maxHistoryMessages:]
	}
	return messages
}

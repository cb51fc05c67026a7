package model

import "time"

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryLog 记录一次问答请求的检索与生成结果，用于离线分析阈值效果。
type QueryLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"type:varchar(64);index" json:"sessionId"`
	Question    string    `gorm:"type:text;not null" json:"question"`
	Grounded    bool      `gorm:"not null;default:false" json:"grounded"`
	TopDistance *float64  `json:"topDistance"`
	Hits        int       `gorm:"not null;default:0" json:"hits"`
	ErrorKind   string    `gorm:"type:varchar(32)" json:"errorKind"`
	LatencyMs   int64     `json:"latencyMs"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}

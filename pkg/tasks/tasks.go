// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// IndexTask 描述一次离线建索引任务。空字段由 worker 使用自身配置补齐。
type IndexTask struct {
	ID           string    `json:"id"`
	Sources      []string  `json:"sources"`
	IndexPath    string    `json:"index_path,omitempty"`
	MetadataPath string    `json:"metadata_path,omitempty"`
	Publish      bool      `json:"publish"`
	RequestedAt  time.Time `json:"requested_at"`
}

// NewIndexTask 创建带唯一 ID 的任务。
func NewIndexTask(sources []string, publish bool) IndexTask {
	return IndexTask{
		ID:          uuid.NewString(),
		Sources:     sources,
		Publish:     publish,
		RequestedAt: time.Now().UTC(),
	}
}

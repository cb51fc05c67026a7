package pipeline

import (
	"context"

	"legal-rag-go/pkg/tasks"
)

// TaskProcessor 把 Kafka 中的建索引任务转换为 Job，空字段使用默认值。
type TaskProcessor struct {
	indexer  *Indexer
	defaults Job
}

// NewTaskProcessor 创建任务处理器。
func NewTaskProcessor(indexer *Indexer, defaults Job) *TaskProcessor {
	return &TaskProcessor{indexer: indexer, defaults: defaults}
}

// Process 实现 kafka.TaskProcessor。
func (p *TaskProcessor) Process(ctx context.Context, task tasks.IndexTask) error {
	_, err := p.indexer.Run(ctx, p.jobFor(task))
	return err
}

func (p *TaskProcessor) jobFor(task tasks.IndexTask) Job {
	job := p.defaults
	if len(task.Sources) > 0 {
		job.Sources = task.Sources
	}
	if task.IndexPath != "" {
		job.IndexPath = task.IndexPath
	}
	if task.MetadataPath != "" {
		job.MetadataPath = task.MetadataPath
	}
	job.Publish = task.Publish
	return job
}

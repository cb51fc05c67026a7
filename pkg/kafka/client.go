// Package kafka 提供了与 Kafka 消息队列交互的功能：投递与消费建索引任务。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"legal-rag-go/internal/config"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一任务失败多少次后提交 offset、放弃重试。
const maxAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IndexTask) error
}

// AttemptTracker 记录任务失败次数。
type AttemptTracker interface {
	Incr(ctx context.Context, taskID string) (int64, error)
	Reset(ctx context.Context, taskID string) error
}

type redisAttempts struct {
	rdb *redis.Client
}

// NewRedisAttemptTracker 用 Redis 计数，key 保留 24 小时。
func NewRedisAttemptTracker(rdb *redis.Client) AttemptTracker {
	return &redisAttempts{rdb: rdb}
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

func (a *redisAttempts) Incr(ctx context.Context, taskID string) (int64, error) {
	key := attemptsKey(taskID)
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (a *redisAttempts) Reset(ctx context.Context, taskID string) error {
	return a.rdb.Del(ctx, attemptsKey(taskID)).Err()
}

// Producer 投递建索引任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg.Brokers)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

// Enqueue 发送一个建索引任务，以任务 ID 作为消息 key。
func (p *Producer) Enqueue(ctx context.Context, task tasks.IndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(task.ID), Value: taskBytes})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 消费建索引任务直到 ctx 结束。处理成功或失败次数达到上限时提交 offset；
// tracker 为 nil 或计数失败时不提交，交给 Kafka 重投。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, tracker AttemptTracker) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}
		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		if handleMessage(ctx, m.Value, processor, tracker) {
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}
}

// handleMessage 处理一条消息，返回是否应提交 offset。
func handleMessage(ctx context.Context, value []byte, processor TaskProcessor, tracker AttemptTracker) bool {
	var task tasks.IndexTask
	if err := json.Unmarshal(value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	log.Infof("开始处理建索引任务: ID=%s, Sources=%v", task.ID, task.Sources)
	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理建索引任务失败: ID=%s, Error: %v", task.ID, err)
		if tracker == nil {
			return false
		}
		attempts, incErr := tracker.Incr(ctx, task.ID)
		if incErr != nil {
			return false
		}
		if attempts >= maxAttempts {
			log.Errorf("建索引任务多次失败(>=%d)，提交 offset 终止重试: ID=%s", maxAttempts, task.ID)
			return true
		}
		return false
	}

	log.Infof("建索引任务处理成功: ID=%s", task.ID)
	if tracker != nil {
		_ = tracker.Reset(ctx, task.ID)
	}
	return true
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

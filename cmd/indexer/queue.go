package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"legal-rag-go/internal/config"
	"legal-rag-go/internal/pipeline"
	"legal-rag-go/pkg/database"
	"legal-rag-go/pkg/kafka"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/tasks"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume index tasks from Kafka and run them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cfg := config.Conf
		if cfg.Kafka.Brokers == "" {
			return errors.New("kafka.brokers is not configured")
		}

		indexer, err := newIndexer(ctx, cfg.MinIO.Endpoint != "")
		if err != nil {
			return err
		}

		var tracker kafka.AttemptTracker
		if cfg.Database.Redis.Addr != "" {
			rdb, err := database.InitRedis(ctx, cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
			if err != nil {
				log.Warnf("Redis 不可用，失败任务将无限重投: %v", err)
			} else {
				defer rdb.Close()
				tracker = kafka.NewRedisAttemptTracker(rdb)
			}
		}

		processor := pipeline.NewTaskProcessor(indexer, currentJob())
		return kafka.StartConsumer(ctx, cfg.Kafka, processor, tracker)
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Send an index task to Kafka for a worker to run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Conf
		if cfg.Kafka.Brokers == "" {
			return errors.New("kafka.brokers is not configured")
		}
		job := currentJob()
		if len(job.Sources) == 0 {
			return errors.New("no sources: pass --source or set indexer.sources")
		}

		task := tasks.NewIndexTask(job.Sources, publish)
		if indexPath != "" {
			task.IndexPath = indexPath
		}
		if metadataPath != "" {
			task.MetadataPath = metadataPath
		}

		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		if err := producer.Enqueue(cmd.Context(), task); err != nil {
			return fmt.Errorf("enqueue failed: %w", err)
		}
		fmt.Printf("Enqueued index task %s (%d sources)\n", task.ID, len(task.Sources))
		return nil
	},
}

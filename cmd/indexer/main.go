// Package main 是离线建索引工具的入口点。
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"legal-rag-go/internal/config"
	"legal-rag-go/internal/pipeline"
	"legal-rag-go/pkg/embedding"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/storage"
	"legal-rag-go/pkg/tika"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	sources      []string
	indexPath    string
	metadataPath string
	workers      int
	publish      bool
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Build and distribute the legal corpus vector index",
	Long: `indexer reads legal corpus sources (JSON item arrays, or directories of them),
embeds every item and writes the co-indexed vector index and metadata files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		config.Conf = *cfg
		log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		log.Sync()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Index the sources once and write the index files",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		job := currentJob()
		job.Publish = publish
		if len(job.Sources) == 0 {
			return errors.New("no sources: pass --source or set indexer.sources")
		}
		indexer, err := newIndexer(ctx, publish)
		if err != nil {
			return err
		}
		stats, err := indexer.Run(ctx, job)
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}

		fmt.Printf("Indexed %d documents (skipped %d) into %s\n", stats.Documents, stats.Skipped, job.IndexPath)
		fmt.Printf("Metadata: %s\n", job.MetadataPath)
		fmt.Printf("Dimension: %d\n", stats.Dim)
		if stats.Published {
			fmt.Println("Artifacts published to object storage")
		}
		fmt.Printf("Duration: %v\n", stats.Duration)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upload existing index files to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		job := currentJob()
		for _, p := range []string{job.IndexPath, job.MetadataPath} {
			if _, err := os.Stat(p); err != nil {
				return fmt.Errorf("index file not available: %w", err)
			}
		}
		store, err := storage.NewArtifactStore(ctx, config.Conf.MinIO)
		if err != nil {
			return err
		}
		if err := store.PublishPair(ctx, job.IndexPath, job.MetadataPath); err != nil {
			return err
		}
		fmt.Printf("Published %s and %s\n", store.ObjectName(job.IndexPath), store.ObjectName(job.MetadataPath))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "./configs/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringSliceVar(&sources, "source", nil, "source JSON file or directory (repeatable, defaults to indexer.sources)")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "vector index output path (defaults to index.index_path)")
	rootCmd.PersistentFlags().StringVar(&metadataPath, "meta", "", "metadata output path (defaults to index.metadata_path)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "concurrent embedding requests (defaults to indexer.workers)")

	runCmd.Flags().BoolVar(&publish, "publish", false, "upload the index files to object storage after writing them")
	enqueueCmd.Flags().BoolVar(&publish, "publish", false, "ask the worker to publish the index files")

	rootCmd.AddCommand(runCmd, workerCmd, enqueueCmd, publishCmd)
}

// currentJob 合并命令行参数与配置文件中的默认值。
func currentJob() pipeline.Job {
	cfg := config.Conf
	job := pipeline.Job{
		Sources:      cfg.Indexer.Sources,
		IndexPath:    cfg.Index.IndexPath,
		MetadataPath: cfg.Index.MetadataPath,
	}
	if len(sources) > 0 {
		job.Sources = sources
	}
	if indexPath != "" {
		job.IndexPath = indexPath
	}
	if metadataPath != "" {
		job.MetadataPath = metadataPath
	}
	return job
}

// newIndexer 组装 Indexer：embedding 客户端带限速，配置了 Tika 时处理 PDF，需要发布时连接 MinIO。
func newIndexer(ctx context.Context, withStore bool) (*pipeline.Indexer, error) {
	cfg := config.Conf
	embedder := embedding.NewRateLimited(embedding.NewClient(cfg.Embedding), cfg.Embedding.RequestsPerSecond, 1)

	var extractor pipeline.TextExtractor
	if client := tika.NewClient(cfg.Tika); client != nil {
		extractor = client
	}

	var publisher pipeline.Publisher
	if withStore {
		store, err := storage.NewArtifactStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		publisher = store
	}

	n := cfg.Indexer.Workers
	if workers > 0 {
		n = workers
	}
	return pipeline.NewIndexer(embedder, extractor, publisher, n), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

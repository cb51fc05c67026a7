// Package pipeline 定义了离线建索引的核心流程：读取来源、生成向量、原子落盘、发布产物。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
	"legal-rag-go/pkg/embedding"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/vectorindex"

	"golang.org/x/sync/errgroup"
)

// ErrNoDocuments 表示所有来源中都没有可用文档。
var ErrNoDocuments = errors.New("pipeline: no documents with text found in sources")

// TextExtractor 从二进制文档（PDF）中提取纯文本。
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Publisher 把落盘后的索引产物发布到共享存储。
type Publisher interface {
	PublishPair(ctx context.Context, indexPath, metadataPath string) error
}

// Indexer 封装了建索引的所有依赖。
type Indexer struct {
	embedder  embedding.Client
	extractor TextExtractor
	publisher Publisher
	workers   int
}

// NewIndexer 创建 Indexer。extractor 与 publisher 可为 nil；workers<1 时串行执行。
func NewIndexer(embedder embedding.Client, extractor TextExtractor, publisher Publisher, workers int) *Indexer {
	if workers < 1 {
		workers = 1
	}
	return &Indexer{
		embedder:  embedder,
		extractor: extractor,
		publisher: publisher,
		workers:   workers,
	}
}

// Job 描述一次完整的建索引运行。
type Job struct {
	Sources      []string
	IndexPath    string
	MetadataPath string
	Publish      bool
}

// Stats 汇总一次运行的结果。
type Stats struct {
	Documents int
	Skipped   int
	Dim       int
	Published bool
	Duration  time.Duration
}

// Index 读取来源并构建共序号的向量索引与元数据。
func (ix *Indexer) Index(ctx context.Context, sources []string) (*vectorindex.Flat, []model.Document, error) {
	idx, docs, _, err := ix.index(ctx, sources)
	return idx, docs, err
}

func (ix *Indexer) index(ctx context.Context, sources []string) (*vectorindex.Flat, []model.Document, int, error) {
	log.Infof("[Indexer] 步骤1: 读取来源, 共 %d 个", len(sources))
	docs, texts, skipped, err := ix.loadSources(ctx, sources)
	if err != nil {
		return nil, nil, 0, err
	}
	if len(docs) == 0 {
		return nil, nil, skipped, ErrNoDocuments
	}

	log.Infof("[Indexer] 步骤2: 生成向量, 文档数 %d, 并发 %d", len(docs), ix.workers)
	vectors, err := ix.embedAll(ctx, texts)
	if err != nil {
		return nil, nil, 0, err
	}

	idx, err := vectorindex.Build(vectors)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("构建向量索引失败: %w", err)
	}
	log.Infof("[Indexer] 步骤3: 索引构建完成, 向量数 %d, 维度 %d", idx.Len(), idx.Dim())
	return idx, docs, skipped, nil
}

// embedAll 以有界并发生成向量，结果写入与输入相同序号的槽位。
func (ix *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := ix.embedder.CreateEmbedding(gctx, text)
			if err != nil {
				return fmt.Errorf("生成第 %d 条文档向量失败: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Persist 先把索引和元数据都写入临时文件，全部成功后再依次 rename 覆盖旧版本。
// 元数据替换失败时恢复旧索引，保证磁盘上的两个文件始终是同一次构建的产物。
func Persist(idx *vectorindex.Flat, docs []model.Document, indexPath, metadataPath string) error {
	if idx.Len() != len(docs) {
		return fmt.Errorf("索引向量数 %d 与元数据条数 %d 不一致", idx.Len(), len(docs))
	}
	indexTmp, err := idx.WriteTemp(indexPath)
	if err != nil {
		return err
	}
	metaTmp, err := repository.WriteMetadataTemp(metadataPath, docs)
	if err != nil {
		os.Remove(indexTmp)
		return err
	}

	backup := indexPath + ".bak"
	hasBackup := false
	if _, err := os.Stat(indexPath); err == nil {
		if err := os.Rename(indexPath, backup); err != nil {
			os.Remove(indexTmp)
			os.Remove(metaTmp)
			return fmt.Errorf("备份旧索引文件失败: %w", err)
		}
		hasBackup = true
	}
	restore := func() {
		if hasBackup {
			if err := os.Rename(backup, indexPath); err != nil {
				log.Errorf("[Indexer] 恢复旧索引文件失败, backup=%s: %v", backup, err)
			}
		} else {
			os.Remove(indexPath)
		}
	}

	if err := os.Rename(indexTmp, indexPath); err != nil {
		os.Remove(indexTmp)
		os.Remove(metaTmp)
		restore()
		return fmt.Errorf("替换索引文件失败: %w", err)
	}
	if err := os.Rename(metaTmp, metadataPath); err != nil {
		os.Remove(metaTmp)
		restore()
		return fmt.Errorf("替换元数据文件失败: %w", err)
	}
	if hasBackup {
		os.Remove(backup)
	}
	return nil
}

// Run 执行 Index、Persist，并在需要时发布产物。
func (ix *Indexer) Run(ctx context.Context, job Job) (*Stats, error) {
	start := time.Now()
	idx, docs, skipped, err := ix.index(ctx, job.Sources)
	if err != nil {
		return nil, err
	}

	log.Infof("[Indexer] 步骤4: 写入 %s 与 %s", job.IndexPath, job.MetadataPath)
	if err := Persist(idx, docs, job.IndexPath, job.MetadataPath); err != nil {
		return nil, err
	}

	stats := &Stats{Documents: len(docs), Skipped: skipped, Dim: idx.Dim()}
	if job.Publish {
		if ix.publisher == nil {
			return nil, errors.New("未配置对象存储，无法发布索引产物")
		}
		log.Info("[Indexer] 步骤5: 发布索引产物")
		if err := ix.publisher.PublishPair(ctx, job.IndexPath, job.MetadataPath); err != nil {
			return nil, err
		}
		stats.Published = true
	}
	stats.Duration = time.Since(start)
	log.Infow("[Indexer] 建索引完成", "documents", stats.Documents, "skipped", stats.Skipped, "dim", stats.Dim, "duration", stats.Duration)
	return stats, nil
}

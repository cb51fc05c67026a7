// Package corpus 把向量索引和元数据组合成一个只读快照，在服务启动时构建一次，
// 之后以引用方式传给检索与问答服务。
package corpus

import (
	"errors"
	"fmt"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
	"legal-rag-go/pkg/vectorindex"
)

var (
	// ErrLengthMismatch 表示索引向量数与元数据条数不一致。
	ErrLengthMismatch = errors.New("corpus: index and metadata length mismatch")
	// ErrDimension 表示索引维度与配置的 embedding 维度不一致。
	ErrDimension = errors.New("corpus: index dimension does not match embedding dimension")
)

// Match 是一次检索命中的文档。
type Match struct {
	Ordinal  int
	Distance float32
	Document model.Document
}

// Corpus 是不可变的索引快照，可被并发读取。
type Corpus struct {
	index *vectorindex.Flat
	docs  []model.Document
}

// New 校验并组合索引与元数据。
func New(index *vectorindex.Flat, docs []model.Document) (*Corpus, error) {
	if index == nil {
		return nil, errors.New("corpus: nil index")
	}
	if index.Len() != len(docs) {
		return nil, fmt.Errorf("%d vectors vs %d records: %w", index.Len(), len(docs), ErrLengthMismatch)
	}
	return &Corpus{index: index, docs: docs}, nil
}

// Load 从磁盘读取索引和元数据。expectedDim>0 时校验维度。
func Load(indexPath, metadataPath string, expectedDim int) (*Corpus, error) {
	index, err := vectorindex.Load(indexPath)
	if err != nil {
		return nil, fmt.Errorf("加载向量索引失败: %w", err)
	}
	if expectedDim > 0 && index.Dim() != expectedDim {
		return nil, fmt.Errorf("index dim %d, embedding dim %d: %w", index.Dim(), expectedDim, ErrDimension)
	}
	docs, err := repository.LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}
	return New(index, docs)
}

// Len 返回语料条数。
func (c *Corpus) Len() int { return len(c.docs) }

// Dim 返回向量维度。
func (c *Corpus) Dim() int { return c.index.Dim() }

// Document 返回序号 i 对应的文档。
func (c *Corpus) Document(i int) model.Document { return c.docs[i] }

// Search 执行精确 k 近邻检索并附带文档记录。
func (c *Corpus) Search(query []float32, k int) ([]Match, error) {
	neighbors, err := c.index.Search(query, k)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		matches = append(matches, Match{Ordinal: n.Ordinal, Distance: n.Distance, Document: c.docs[n.Ordinal]})
	}
	return matches, nil
}

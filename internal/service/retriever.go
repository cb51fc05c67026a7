// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"legal-rag-go/internal/corpus"
	"legal-rag-go/pkg/embedding"
	"legal-rag-go/pkg/log"
)

// DefaultTopK 是每次检索返回的候选数。
const DefaultTopK = 3

// RetrievalResult 是一次检索的结果。Grounded 为 false 时 Hits 仍包含索引返回的候选。
type RetrievalResult struct {
	Hits        []corpus.Match
	Grounded    bool
	TopDistance *float32
}

// Retriever 对查询做 embedding 并在快照上执行 k 近邻检索。
type Retriever struct {
	embedder embedding.Client
}

// NewRetriever 创建一个新的 Retriever。
func NewRetriever(embedder embedding.Client) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve 在 snap 上检索 query。snap 为 nil 时直接返回未命中且不调用 embedding；
// 最近候选的距离不超过 threshold 时视为 grounded。
func (r *Retriever) Retrieve(ctx context.Context, snap *corpus.Corpus, query string, k int, threshold float64) (*RetrievalResult, error) {
	if snap == nil {
		return &RetrievalResult{}, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vec, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	hits, err := snap.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	result := &RetrievalResult{Hits: hits}
	if len(hits) > 0 {
		top := hits[0].Distance
		result.TopDistance = &top
		result.Grounded = float64(top) <= threshold
	}
	log.Debugf("[Retriever] hits=%d, grounded=%t, threshold=%.4f", len(hits), result.Grounded, threshold)
	return result, nil
}

// Package vectorindex 提供精确的暴力 L2 最近邻索引。
//
// 距离采用平方欧氏距离（与 FAISS IndexFlatL2 一致），检索阈值应按此度量配置。
package vectorindex

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDimMismatch = errors.New("vectorindex: vector dimension mismatch")
	ErrInvalidDim  = errors.New("vectorindex: dimension must be positive")
	ErrCorrupt     = errors.New("vectorindex: index file corrupted")
)

// Neighbor 是一次检索命中：序号与距离。
type Neighbor struct {
	Ordinal  int
	Distance float32
}

// Flat 按序号顺序保存全部向量，Search 时与每一条向量逐一比较。
// 构建完成后只读，可被多个 goroutine 并发检索。
type Flat struct {
	dim  int
	data []float32 // 连续存储，第 i 条向量位于 data[i*dim:(i+1)*dim]
}

// New 创建一个空索引。
func New(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, ErrInvalidDim
	}
	return &Flat{dim: dim}, nil
}

// Build 用一组同维度的向量构建索引，序号即切片下标。
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("vectorindex: no vectors to build: %w", ErrInvalidDim)
	}
	idx, err := New(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	idx.data = make([]float32, 0, len(vectors)*idx.dim)
	for i, v := range vectors {
		if len(v) != idx.dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), idx.dim, ErrDimMismatch)
		}
		idx.data = append(idx.data, v...)
	}
	return idx, nil
}

// Dim 返回索引的固定维度。
func (f *Flat) Dim() int { return f.dim }

// Len 返回索引中的向量数量。
func (f *Flat) Len() int { return len(f.data) / f.dim }

// Vector 返回第 i 条向量的拷贝。
func (f *Flat) Vector(i int) []float32 {
	out := make([]float32, f.dim)
	copy(out, f.data[i*f.dim:(i+1)*f.dim])
	return out
}

// Search 返回距离 query 最近的至多 k 条结果，按距离升序，距离相同时序号小者在前。
func (f *Flat) Search(query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d: %w", len(query), f.dim, ErrDimMismatch)
	}
	n := f.Len()
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	if k > n {
		k = n
	}

	all := make([]Neighbor, n)
	for i := 0; i < n; i++ {
		all[i] = Neighbor{Ordinal: i, Distance: SquaredL2(query, f.data[i*f.dim:(i+1)*f.dim])}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].Distance != all[b].Distance {
			return all[a].Distance < all[b].Distance
		}
		return all[a].Ordinal < all[b].Ordinal
	})

	out := make([]Neighbor, k)
	copy(out, all[:k])
	return out, nil
}

// SquaredL2 计算两个等长向量的平方欧氏距离。
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

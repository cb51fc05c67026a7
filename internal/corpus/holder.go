package corpus

import "sync/atomic"

// Holder 持有当前生效的快照。请求开始时调用 Current 取得一次快照并在整个请求中使用，
// 热加载通过 Swap 原子替换，不影响正在处理的请求。
type Holder struct {
	current atomic.Pointer[Corpus]
}

// NewHolder 创建 Holder，c 可以为 nil（索引不可用）。
func NewHolder(c *Corpus) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current 返回当前快照，nil 表示索引不可用。
func (h *Holder) Current() *Corpus {
	return h.current.Load()
}

// Swap 替换当前快照并返回旧快照。
func (h *Holder) Swap(c *Corpus) *Corpus {
	return h.current.Swap(c)
}

package service

import (
	"context"
	"errors"
	"sync"

	"legal-rag-go/internal/corpus"
	"legal-rag-go/internal/model"
	"legal-rag-go/pkg/llm"
	"legal-rag-go/pkg/vectorindex"
)

// 测试语料：三条记录分布在二维平面上，查询向量由 fakeEmbedder 按问题映射。
var testDocs = []model.Document{
	{Title: "Section 302", Text: "Whoever commits murder shall be punished with death or imprisonment for life.", Source: "ipc.json"},
	{Title: "Section 420", Text: "Cheating and dishonestly inducing delivery of property.", Source: "ipc.json"},
	{Title: "Order XXI", Text: "Execution of decrees and orders.", Source: "cpc.json"},
}

var testVectors = [][]float32{{0, 0}, {10, 0}, {0, 10}}

func newTestCorpus() *corpus.Corpus {
	idx, err := vectorindex.Build(testVectors)
	if err != nil {
		panic(err)
	}
	c, err := corpus.New(idx, testDocs)
	if err != nil {
		panic(err)
	}
	return c
}

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
	err     error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"What is Section 302?":      {0.5, 0.2}, // 距 ordinal 0 的平方距离 0.29
		"asdkjh random gibberish":   {2, 1},     // 距 ordinal 0 的平方距离 5.0
		"Whoever commits murder":    {0, 0},
		"Three dimensional mystery": {1, 2, 3},
	}}
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{100, 100}, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	params  []llm.Params
	answer  string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.params = append(f.params, params)
	return f.answer, f.err
}

type fakeConversations struct {
	appended [][3]string
	err      error
}

func (f *fakeConversations) History(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return nil, nil
}

func (f *fakeConversations) Append(ctx context.Context, sessionID, question, answer string) error {
	f.appended = append(f.appended, [3]string{sessionID, question, answer})
	return f.err
}

func (f *fakeConversations) DeleteItem(ctx context.Context, sessionID, question string) (bool, error) {
	return false, nil
}

type fakeQueryLogs struct {
	entries []model.QueryLog
	err     error
}

func (f *fakeQueryLogs) Create(ctx context.Context, entry *model.QueryLog) error {
	f.entries = append(f.entries, *entry)
	return f.err
}

func (f *fakeQueryLogs) FindRecent(ctx context.Context, limit int) ([]model.QueryLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}

var errNoCredentials = errors.New("could not find default credentials")

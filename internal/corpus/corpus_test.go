package corpus

import (
	"path/filepath"
	"testing"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
	"legal-rag-go/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, dir string, vectors [][]float32, docs []model.Document) (string, string) {
	t.Helper()
	idx, err := vectorindex.Build(vectors)
	require.NoError(t, err)
	indexPath := filepath.Join(dir, "embeddings", "legal_index.bin")
	metaPath := filepath.Join(dir, "meta.json")
	require.NoError(t, idx.Save(indexPath))
	require.NoError(t, repository.SaveMetadata(metaPath, docs))
	return indexPath, metaPath
}

func TestLoad_AndSearch(t *testing.T) {
	docs := []model.Document{
		{Title: "A", Text: "alpha", Source: "a.json"},
		{Title: "B", Text: "beta", Source: "b.json"},
	}
	indexPath, metaPath := writeCorpus(t, t.TempDir(), [][]float32{{0, 0}, {1, 1}}, docs)

	c, err := Load(indexPath, metaPath, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.Dim())

	matches, err := c.Search([]float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Ordinal)
	assert.Equal(t, docs[1], matches[0].Document)
	assert.Equal(t, float32(0), matches[0].Distance)
	assert.Equal(t, docs[0], c.Document(0))
}

func TestLoad_Mismatches(t *testing.T) {
	docs := []model.Document{{Text: "only one", Source: "a.json"}}
	indexPath, metaPath := writeCorpus(t, t.TempDir(), [][]float32{{0, 0}, {1, 1}}, docs)

	_, err := Load(indexPath, metaPath, 0)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Load(indexPath, metaPath, 384)
	assert.ErrorIs(t, err, ErrDimension)

	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"), metaPath, 0)
	assert.Error(t, err)
}

func TestHolder_Swap(t *testing.T) {
	h := NewHolder(nil)
	assert.Nil(t, h.Current())

	idx, err := vectorindex.Build([][]float32{{1}})
	require.NoError(t, err)
	c, err := New(idx, []model.Document{{Text: "x"}})
	require.NoError(t, err)

	old := h.Swap(c)
	assert.Nil(t, old)
	assert.Same(t, c, h.Current())
}

func TestWatcher_ReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	dir := t.TempDir()
	docs := []model.Document{{Text: "first", Source: "a.json"}}
	indexPath, metaPath := writeCorpus(t, dir, [][]float32{{1, 2}}, docs)

	first, err := Load(indexPath, metaPath, 0)
	require.NoError(t, err)
	h := NewHolder(first)
	w := NewWatcher(h, indexPath, metaPath, 0)

	// 元数据与索引长度不一致时保留旧快照
	require.NoError(t, repository.SaveMetadata(metaPath, append(docs, model.Document{Text: "extra"})))
	assert.False(t, w.Reload())
	assert.Same(t, first, h.Current())

	writeCorpus(t, dir, [][]float32{{1, 2}, {3, 4}}, []model.Document{{Text: "first"}, {Text: "second"}})
	assert.True(t, w.Reload())
	assert.Equal(t, 2, h.Current().Len())
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"legal-rag-go/internal/model"
	"legal-rag-go/pkg/log"
)

// rawItem 是原始 JSON 数组中的一条记录，字段类型不做假设。
type rawItem map[string]any

// loadSources 按给定顺序读取所有来源，返回文档及其待 embedding 的组合文本。
func (ix *Indexer) loadSources(ctx context.Context, sources []string) ([]model.Document, []string, int, error) {
	var (
		docs    []model.Document
		texts   []string
		skipped int
	)
	add := func(d []model.Document, s int) {
		for _, doc := range d {
			docs = append(docs, doc)
			texts = append(texts, combine(doc))
		}
		skipped += s
	}

	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("来源不可用 %s: %w", src, err)
		}
		if !info.IsDir() {
			d, s, err := ix.loadFile(ctx, src, true)
			if err != nil {
				return nil, nil, 0, err
			}
			add(d, s)
			continue
		}

		// os.ReadDir 按文件名字典序返回，保证多次运行序号一致
		entries, err := os.ReadDir(src)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("读取目录失败 %s: %w", src, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			d, s, err := ix.loadFile(ctx, filepath.Join(src, entry.Name()), false)
			if err != nil {
				return nil, nil, 0, err
			}
			add(d, s)
		}
	}
	return docs, texts, skipped, nil
}

// loadFile 读取单个文件。explicit 表示该文件由调用方直接指定，不支持的类型视为错误；
// 目录中不支持的文件直接忽略。
func (ix *Indexer) loadFile(ctx context.Context, path string, explicit bool) ([]model.Document, int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".pdf":
		if ix.extractor != nil {
			doc, err := ix.loadPDF(ctx, path)
			if err != nil {
				return nil, 0, err
			}
			if doc == nil {
				return nil, 1, nil
			}
			return []model.Document{*doc}, 0, nil
		}
	}
	if explicit {
		return nil, 0, fmt.Errorf("不支持的来源文件类型: %s", path)
	}
	log.Debugf("[Indexer] 忽略不支持的文件: %s", path)
	return nil, 0, nil
}

func loadJSON(path string) ([]model.Document, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("读取来源文件失败 %s: %w", path, err)
	}
	var items []rawItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("解析来源文件失败 %s: %w", path, err)
	}

	source := filepath.Base(path)
	docs := make([]model.Document, 0, len(items))
	skipped := 0
	for i, item := range items {
		text, ok := item["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			log.Warnf("[Indexer] 跳过缺少 text 的记录, source=%s, item=%d", source, i)
			skipped++
			continue
		}
		title, _ := item["title"].(string)
		docs = append(docs, model.Document{Title: title, Text: text, Source: source})
	}
	log.Infof("[Indexer] 来源 %s: 读取 %d 条, 跳过 %d 条", source, len(docs), skipped)
	return docs, skipped, nil
}

// loadPDF 通过文本提取器把一个 PDF 转为一条文档，标题为去掉扩展名的文件名。
func (ix *Indexer) loadPDF(ctx context.Context, path string) (*model.Document, error) {
	text, err := ix.extractor.ExtractFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("提取 PDF 文本失败 %s: %w", path, err)
	}
	source := filepath.Base(path)
	if strings.TrimSpace(text) == "" {
		log.Warnf("[Indexer] 跳过无文本的 PDF: %s", source)
		return nil, nil
	}
	return &model.Document{
		Title:  strings.TrimSuffix(source, filepath.Ext(source)),
		Text:   text,
		Source: source,
	}, nil
}

// combine 生成用于 embedding 的文本：标题与正文以换行连接。
func combine(doc model.Document) string {
	return doc.Title + "\n" + doc.Text
}

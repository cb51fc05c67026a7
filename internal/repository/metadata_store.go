// Package repository 提供了数据访问层的实现。
package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"legal-rag-go/internal/model"
	"os"
	"path/filepath"
)

// LoadMetadata 读取元数据文件：一个按向量序号排列的 Document JSON 数组。
func LoadMetadata(path string) ([]model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取元数据文件失败: %w", err)
	}
	var docs []model.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("解析元数据文件失败 %s: %w", path, err)
	}
	return docs, nil
}

// SaveMetadata 原子地写入元数据文件。
func SaveMetadata(path string, docs []model.Document) error {
	tmp, err := WriteMetadataTemp(path, docs)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("重命名元数据文件失败: %w", err)
	}
	return nil
}

// WriteMetadataTemp 将元数据写入 path 同目录下的临时文件并返回其路径。
func WriteMetadataTemp(path string, docs []model.Document) (string, error) {
	if docs == nil {
		docs = []model.Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // 保留原文中的 <、>、& 以及非 ASCII 字符
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return "", fmt.Errorf("序列化元数据失败: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建元数据目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("创建临时元数据文件失败: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("写入临时元数据文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("关闭临时元数据文件失败: %w", err)
	}
	return tmp.Name(), nil
}

// Package model 包含了应用的数据模型定义。
package model

import "fmt"

// Document 是语料中的一条记录，序号与向量索引中的序号一一对应。
// 索引构建后不可变，Text 恒不为空。
type Document struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Citation 是返回给调用方的引用：文档记录加上引用 ID 与检索距离。
type Citation struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float32 `json:"distance"`
}

// CitationID 生成引用 ID，格式为 "<source>#<ordinal>"。
func CitationID(source string, ordinal int) string {
	if source == "" {
		source = "doc"
	}
	return fmt.Sprintf("%s#%d", source, ordinal)
}

// NewCitation 由文档记录、序号和距离构造引用。
func NewCitation(doc Document, ordinal int, distance float32) Citation {
	return Citation{
		ID:       CitationID(doc.Source, ordinal),
		Title:    doc.Title,
		Text:     doc.Text,
		Source:   doc.Source,
		Distance: distance,
	}
}

package service

import (
	"strings"
	"unicode/utf8"

	"legal-rag-go/internal/model"
)

// citationTextLimit 是每条引用在 prompt 中保留的最大字符数。
const citationTextLimit = 400

const groundedTemplate = `You are a helpful legal assistant. Use the citations below to answer the user's question. If you quote law, reference the citation id.

CITATIONS:
%CITATIONS%

QUESTION:
%QUESTION%

Answer succinctly and then list the citations used (ids).
`

const ungroundedTemplate = `You are a helpful legal assistant. The retrieved database did not contain relevant documents for the user's question. Answer the question directly and be concise.

QUESTION:
%QUESTION%

Answer succinctly and clearly. If you cannot answer precisely, say so and suggest how to narrow the question.
`

var greetings = map[string]struct{}{
	"hi":          {},
	"hello":       {},
	"how are you": {},
	"who are you": {},
}

// IsGreeting 判断问题（去除首尾空白、忽略大小写后）是否为寒暄。
func IsGreeting(question string) bool {
	_, ok := greetings[strings.ToLower(strings.TrimSpace(question))]
	return ok
}

// BuildPrompt 按 grounded 与否选择模板渲染 prompt。
func BuildPrompt(question string, result *RetrievalResult) string {
	if result == nil || !result.Grounded {
		return strings.NewReplacer("%QUESTION%", question).Replace(ungroundedTemplate)
	}
	return strings.NewReplacer("%CITATIONS%", citationBlock(result), "%QUESTION%", question).Replace(groundedTemplate)
}

func citationBlock(result *RetrievalResult) string {
	lines := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id := model.CitationID(hit.Document.Source, hit.Ordinal)
		lines = append(lines, id+": "+truncate(hit.Document.Text, citationTextLimit))
	}
	return strings.Join(lines, "\n")
}

// truncate 截取前 limit 个字符并去除首尾空白。
func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		text = string(runes[:limit])
	}
	return strings.TrimSpace(text)
}

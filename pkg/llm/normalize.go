package llm

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// fallbackLimit 是无法识别的响应序列化后保留的最大字节数。
const fallbackLimit = 2000

// extractor 尝试从一种已知响应形态中取出回答文本。
type extractor struct {
	name    string
	extract func(payload any) (string, bool)
}

// extractors 按顺序尝试，第一个命中的结果即为回答。
var extractors = []extractor{
	{name: "flat", extract: flatString},
	{name: "top_level", extract: topLevelField},
	{name: "predictions", extract: firstPrediction},
	{name: "candidates", extract: firstCandidate},
}

// Normalize 将任意形态的 provider 响应归一化为回答文本；无法识别时返回截断的 JSON 序列化结果。
// JSON null 对应空回答。
func Normalize(payload any) string {
	if payload == nil {
		return ""
	}
	for _, e := range extractors {
		if answer, ok := e.extract(payload); ok {
			return answer
		}
	}
	return fallback(payload)
}

func flatString(payload any) (string, bool) {
	s, ok := payload.(string)
	return s, ok
}

func topLevelField(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	return stringField(m, "answer", "text", "output", "result")
}

func firstPrediction(payload any) (string, bool) {
	pred, ok := firstObject(payload, "predictions")
	if !ok {
		return "", false
	}
	if s, ok := stringField(pred, "content", "text"); ok {
		return s, true
	}
	switch out := pred["output"].(type) {
	case string:
		return out, true
	case []any:
		if len(out) == 0 {
			return "", false
		}
		if first, ok := out[0].(map[string]any); ok {
			// content 为空时取 text，都没有时视为空回答
			return firstNonEmpty(first, "content", "text"), true
		}
	}
	return "", false
}

// firstCandidate 处理 Gemini generateContent 的 candidates[0].content.parts[0].text。
func firstCandidate(payload any) (string, bool) {
	cand, ok := firstObject(payload, "candidates")
	if !ok {
		return "", false
	}
	content, ok := cand["content"].(map[string]any)
	if !ok {
		return "", false
	}
	part, ok := firstObject(content, "parts")
	if !ok {
		return "", false
	}
	return stringField(part, "text")
}

func firstObject(payload any, key string) (map[string]any, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	list, ok := m[key].([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	first, ok := list[0].(map[string]any)
	return first, ok
}

func stringField(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := m[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

// firstNonEmpty 返回第一个非空的字符串字段，都为空时返回空字符串。
func firstNonEmpty(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func fallback(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	if len(data) > fallbackLimit {
		data = data[:fallbackLimit]
		// 不在多字节字符中间截断
		for len(data) > 0 && !utf8.Valid(data) {
			data = data[:len(data)-1]
		}
	}
	return string(data)
}

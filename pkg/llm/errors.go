package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind 是结构化错误的分类。
type Kind string

const (
	KindConfig                Kind = "config_error"
	KindEmbeddingsUnavailable Kind = "embeddings_unavailable"
	KindAuth                  Kind = "auth_error"
	KindUpstream              Kind = "upstream_error"
	KindTimeout               Kind = "timeout"
	KindBadRequest            Kind = "bad_request"
)

// DefaultStatus 返回每类错误默认对外暴露的 HTTP 状态码。
func (k Kind) DefaultStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindAuth, KindEmbeddingsUnavailable, KindConfig:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Error 是生成调用失败时返回的结构化错误：分类、消息与状态码。
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 构造结构化错误，status<=0 时使用该分类的默认状态码。
func NewError(kind Kind, status int, err error) *Error {
	if status <= 0 {
		status = kind.DefaultStatus()
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Status: status, Err: err}
}

// AsError 从 err 中取出 *Error；非结构化错误按 upstream_error 处理，超时归为 timeout。
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, 0, err)
	}
	return NewError(KindUpstream, 0, err)
}

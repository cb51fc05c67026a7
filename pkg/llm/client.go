// Package llm 封装对生成服务（Vertex AI predict 接口）的调用。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"legal-rag-go/internal/config"

	"google.golang.org/api/googleapi"
)

// Params 控制单次生成的 token 预算与温度。
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Generator 是生成网关的抽象，失败时返回 *Error。
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Content string `json:"content"`
}

type predictParameters struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

// VertexGateway 每次调用都重新鉴权并请求 predict 接口，不缓存任何结果。
type VertexGateway struct {
	cfg    config.LLMConfig
	auth   Authenticator
	client *http.Client
}

// NewVertexGateway 创建网关；auth 为 nil 时使用 GoogleAuthenticator。
func NewVertexGateway(cfg config.LLMConfig, auth Authenticator) *VertexGateway {
	if auth == nil {
		auth = GoogleAuthenticator{CredentialsFile: cfg.CredentialsFile}
	}
	return &VertexGateway{
		cfg:    cfg,
		auth:   auth,
		client: &http.Client{},
	}
}

// URL 返回 predict 接口地址。
func (g *VertexGateway) URL() string {
	endpoint := strings.TrimRight(g.cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s-aiplatform.googleapis.com", g.cfg.Location)
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		endpoint, g.cfg.Project, g.cfg.Location, g.cfg.Model)
}

func (g *VertexGateway) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	ts, err := g.auth.TokenSource(ctx)
	if err != nil {
		return "", classify(ctx, KindAuth, err)
	}
	token, err := ts.Token()
	if err != nil {
		return "", classify(ctx, KindAuth, fmt.Errorf("fetch access token: %w", err))
	}

	reqBytes, err := json.Marshal(predictRequest{
		Instances:  []predictInstance{{Content: prompt}},
		Parameters: predictParameters{MaxOutputTokens: params.MaxTokens, Temperature: params.Temperature},
	})
	if err != nil {
		return "", NewError(KindUpstream, 0, fmt.Errorf("failed to marshal predict request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL(), bytes.NewReader(reqBytes))
	if err != nil {
		return "", NewError(KindUpstream, 0, fmt.Errorf("failed to create predict request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", classify(ctx, KindUpstream, fmt.Errorf("failed to call predict api: %w", err))
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		status := resp.StatusCode
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= http.StatusBadRequest {
			status = apiErr.Code
		}
		if status < http.StatusBadRequest {
			status = 0
		}
		return "", NewError(KindUpstream, status, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(ctx, KindUpstream, fmt.Errorf("failed to read predict response: %w", err))
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", NewError(KindUpstream, 0, fmt.Errorf("predict api returned non-JSON body: %w", err))
	}
	return Normalize(payload), nil
}

// classify 在上下文超时时把错误归为 timeout，否则使用给定分类。
func classify(ctx context.Context, kind Kind, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, 0, err)
	}
	return NewError(kind, 0, err)
}

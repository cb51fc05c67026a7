package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"legal-rag-go/internal/corpus"
	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
	"legal-rag-go/pkg/llm"
	"legal-rag-go/pkg/log"
	"legal-rag-go/pkg/vectorindex"
)

const (
	DisclaimerInformational = "This is informational only. Not legal advice."
	DisclaimerGreeting      = "This is for informational purposes only."
	DisclaimerUnavailable   = "Embeddings not loaded on server. Please check server logs."
	DisclaimerMock          = "Mock response (dev)"

	greetingAnswer     = "I am a legal AI chatbot trained on Indian laws and acts. You can ask me about legal sections and rules."
	mockPrefix         = "[MOCK] "
	mockFallbackAnswer = "I couldn't find citations, but here's a generic legal summary."
)

// Request 是一次问答请求。
type Request struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// Response 是问答结果。Answer 为 nil 表示没有回答（出错或索引不可用）。
type Response struct {
	Answer     *string          `json:"answer"`
	Citations  []model.Citation `json:"citations"`
	Disclaimer string           `json:"disclaimer"`
	Grounded   bool             `json:"grounded"`
	Error      llm.Kind         `json:"error,omitempty"`
	Message    string           `json:"message,omitempty"`
	Status     int              `json:"-"`
}

// AnswerOptions 是问答编排的运行参数。
type AnswerOptions struct {
	TopK              int
	DistanceThreshold float64
	MockMode          bool
	Generation        llm.Params
}

// AnswerService 串联检索、prompt 构建与生成。
type AnswerService struct {
	holder        *corpus.Holder
	retriever     *Retriever
	generator     llm.Generator
	conversations ConversationService
	queryLogs     repository.QueryLogRepository
	opts          AnswerOptions
}

// NewAnswerService 创建 AnswerService。conversations 与 queryLogs 可为 nil。
func NewAnswerService(
	holder *corpus.Holder,
	retriever *Retriever,
	generator llm.Generator,
	conversations ConversationService,
	queryLogs repository.QueryLogRepository,
	opts AnswerOptions,
) *AnswerService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &AnswerService{
		holder:        holder,
		retriever:     retriever,
		generator:     generator,
		conversations: conversations,
		queryLogs:     queryLogs,
		opts:          opts,
	}
}

// Answer 处理一个问题，任何失败都转换为带错误分类与状态码的 Response。
func (s *AnswerService) Answer(ctx context.Context, req Request) *Response {
	start := time.Now()
	if strings.TrimSpace(req.Question) == "" {
		return errorResponse(llm.NewError(llm.KindBadRequest, 0, errors.New("question must not be empty")))
	}

	if IsGreeting(req.Question) {
		resp := answered(greetingAnswer, []model.Citation{}, DisclaimerGreeting)
		s.record(ctx, req, resp, nil, start)
		return resp
	}

	// 整个请求只使用这一份快照，热加载不会影响进行中的请求
	snap := s.holder.Current()
	if snap == nil {
		resp := &Response{
			Citations:  []model.Citation{},
			Disclaimer: DisclaimerUnavailable,
			Error:      llm.KindEmbeddingsUnavailable,
			Message:    "vector index is not loaded",
			Status:     http.StatusServiceUnavailable,
		}
		s.record(ctx, req, resp, nil, start)
		return resp
	}

	result, err := s.retriever.Retrieve(ctx, snap, req.Question, s.opts.TopK, s.opts.DistanceThreshold)
	if err != nil {
		log.Errorf("[AnswerService] 检索失败: %v", err)
		resp := errorResponse(retrievalError(err))
		s.record(ctx, req, resp, nil, start)
		return resp
	}
	citations := toCitations(result.Hits)

	prompt := BuildPrompt(req.Question, result)
	answer, err := s.generator.Generate(ctx, prompt, s.opts.Generation)
	if err != nil {
		genErr := llm.AsError(err)
		var resp *Response
		if genErr.Kind == llm.KindAuth && s.opts.MockMode {
			log.Warnf("[AnswerService] 生成服务鉴权失败，返回 mock 回答: %s", genErr.Message)
			resp = answered(mockAnswer(citations), citations, DisclaimerMock)
		} else {
			log.Errorf("[AnswerService] 生成失败: %v", genErr)
			resp = errorResponse(genErr)
		}
		resp.Grounded = result.Grounded
		s.record(ctx, req, resp, result, start)
		return resp
	}

	resp := answered(answer, citations, DisclaimerInformational)
	resp.Grounded = result.Grounded
	s.record(ctx, req, resp, result, start)
	return resp
}

func answered(answer string, citations []model.Citation, disclaimer string) *Response {
	return &Response{
		Answer:     &answer,
		Citations:  citations,
		Disclaimer: disclaimer,
		Status:     http.StatusOK,
	}
}

func errorResponse(err *llm.Error) *Response {
	return &Response{
		Citations:  []model.Citation{},
		Disclaimer: DisclaimerInformational,
		Error:      err.Kind,
		Message:    err.Message,
		Status:     err.Status,
	}
}

// retrievalError 对检索阶段的错误分类：维度不一致属于配置错误，其余视为上游错误。
func retrievalError(err error) *llm.Error {
	switch {
	case errors.Is(err, vectorindex.ErrDimMismatch):
		return llm.NewError(llm.KindConfig, 0, err)
	case errors.Is(err, context.DeadlineExceeded):
		return llm.NewError(llm.KindTimeout, 0, err)
	default:
		return llm.NewError(llm.KindUpstream, 0, err)
	}
}

func toCitations(hits []corpus.Match) []model.Citation {
	citations := make([]model.Citation, 0, len(hits))
	for _, h := range hits {
		citations = append(citations, model.NewCitation(h.Document, h.Ordinal, h.Distance))
	}
	return citations
}

func mockAnswer(citations []model.Citation) string {
	for _, c := range citations {
		if text := strings.TrimSpace(c.Text); text != "" {
			return mockPrefix + text
		}
	}
	return mockPrefix + mockFallbackAnswer
}

// record 保存对话历史与查询审计，失败只记录日志。
func (s *AnswerService) record(ctx context.Context, req Request, resp *Response, result *RetrievalResult, start time.Time) {
	ctx = context.WithoutCancel(ctx)

	if s.conversations != nil && req.SessionID != "" && resp.Answer != nil {
		if err := s.conversations.Append(ctx, req.SessionID, req.Question, *resp.Answer); err != nil {
			log.Errorf("[AnswerService] 保存对话历史失败, session=%s: %v", req.SessionID, err)
		}
	}

	if s.queryLogs == nil {
		return
	}
	entry := &model.QueryLog{
		SessionID: req.SessionID,
		Question:  req.Question,
		Grounded:  resp.Grounded,
		ErrorKind: string(resp.Error),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if result != nil {
		entry.Hits = len(result.Hits)
		if result.TopDistance != nil {
			d := float64(*result.TopDistance)
			entry.TopDistance = &d
		}
	}
	if err := s.queryLogs.Create(ctx, entry); err != nil {
		log.Errorf("[AnswerService] 写入查询审计失败: %v", err)
	}
}

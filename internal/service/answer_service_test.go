package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"legal-rag-go/internal/corpus"
	"legal-rag-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answerFixture struct {
	svc           *AnswerService
	holder        *corpus.Holder
	embedder      *fakeEmbedder
	generator     *fakeGenerator
	conversations *fakeConversations
	queryLogs     *fakeQueryLogs
}

func newAnswerFixture(opts AnswerOptions, snap *corpus.Corpus) *answerFixture {
	f := &answerFixture{
		holder:        corpus.NewHolder(snap),
		embedder:      newFakeEmbedder(),
		generator:     &fakeGenerator{answer: "Section 302 prescribes death or life imprisonment. Citations: ipc.json#0"},
		conversations: &fakeConversations{},
		queryLogs:     &fakeQueryLogs{},
	}
	if opts.DistanceThreshold == 0 {
		opts.DistanceThreshold = 1.0
	}
	opts.Generation = llm.Params{MaxTokens: 512}
	f.svc = NewAnswerService(f.holder, NewRetriever(f.embedder), f.generator, f.conversations, f.queryLogs, opts)
	return f
}

func TestAnswer_GroundedQuestion(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?", SessionID: "s-1"})

	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Answer)
	assert.Contains(t, *resp.Answer, "Section 302")
	assert.True(t, resp.Grounded)
	assert.Empty(t, resp.Error)
	assert.Equal(t, DisclaimerInformational, resp.Disclaimer)
	require.Len(t, resp.Citations, 3)
	assert.Equal(t, "ipc.json#0", resp.Citations[0].ID)
	assert.Equal(t, "Section 302", resp.Citations[0].Title)

	require.Len(t, f.generator.prompts, 1)
	assert.Contains(t, f.generator.prompts[0], "CITATIONS:\nipc.json#0: Whoever commits murder")
	assert.Equal(t, 512, f.generator.params[0].MaxTokens)

	require.Len(t, f.conversations.appended, 1)
	assert.Equal(t, [3]string{"s-1", "What is Section 302?", *resp.Answer}, f.conversations.appended[0])
	require.Len(t, f.queryLogs.entries, 1)
	entry := f.queryLogs.entries[0]
	assert.True(t, entry.Grounded)
	assert.Equal(t, 3, entry.Hits)
	require.NotNil(t, entry.TopDistance)
	assert.InDelta(t, 0.29, *entry.TopDistance, 1e-5)
}

func TestAnswer_UngroundedQuestion(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())
	f.generator.answer = "I cannot answer that precisely. Try naming a specific act or section."

	resp := f.svc.Answer(context.Background(), Request{Question: "asdkjh random gibberish"})

	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Answer)
	assert.False(t, resp.Grounded)
	assert.Len(t, resp.Citations, 3, "unused candidates are still reported")
	require.Len(t, f.generator.prompts, 1)
	assert.NotContains(t, f.generator.prompts[0], "CITATIONS:")
	assert.Empty(t, f.conversations.appended, "no session id, no history")
}

func TestAnswer_ZeroThresholdNeverGroundsInexactQuery(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())
	f.svc.opts.DistanceThreshold = 0

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})
	assert.False(t, resp.Grounded)
	assert.NotContains(t, f.generator.prompts[0], "CITATIONS:")
}

func TestAnswer_GreetingShortCircuit(t *testing.T) {
	for _, q := range []string{"hi", "  HI ", "Who are you"} {
		t.Run(q, func(t *testing.T) {
			// 即使索引不可用，寒暄也直接返回
			f := newAnswerFixture(AnswerOptions{}, nil)

			resp := f.svc.Answer(context.Background(), Request{Question: q})

			assert.Equal(t, http.StatusOK, resp.Status)
			require.NotNil(t, resp.Answer)
			assert.Equal(t, greetingAnswer, *resp.Answer)
			assert.Equal(t, DisclaimerGreeting, resp.Disclaimer)
			assert.Empty(t, resp.Citations)
			assert.NotNil(t, resp.Citations)
			assert.Zero(t, f.embedder.calls)
			assert.Empty(t, f.generator.prompts)
		})
	}
}

func TestAnswer_EmbeddingsUnavailable(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, nil)

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Nil(t, resp.Answer)
	assert.Equal(t, llm.KindEmbeddingsUnavailable, resp.Error)
	assert.Equal(t, DisclaimerUnavailable, resp.Disclaimer)
	assert.Empty(t, resp.Citations)
	assert.Zero(t, f.embedder.calls)
	assert.Empty(t, f.generator.prompts)
	require.Len(t, f.queryLogs.entries, 1)
	assert.Equal(t, "embeddings_unavailable", f.queryLogs.entries[0].ErrorKind)
}

func TestAnswer_HotSwappedSnapshot(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, nil)
	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})
	assert.Equal(t, llm.KindEmbeddingsUnavailable, resp.Error)

	f.holder.Swap(newTestCorpus())
	resp = f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Grounded)
}

func TestAnswer_MockModeOnAuthError(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{MockMode: true}, newTestCorpus())
	f.generator.err = llm.NewError(llm.KindAuth, 0, errNoCredentials)

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})

	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Answer)
	assert.True(t, strings.HasPrefix(*resp.Answer, "[MOCK] "))
	assert.Equal(t, "[MOCK] "+testDocs[0].Text, *resp.Answer)
	assert.Equal(t, DisclaimerMock, resp.Disclaimer)
	assert.Len(t, resp.Citations, 3)
	assert.Empty(t, resp.Error)
}

func TestMockAnswer_FallbackWithoutCitations(t *testing.T) {
	assert.Equal(t, "[MOCK] "+mockFallbackAnswer, mockAnswer(nil))
}

func TestAnswer_AuthErrorWithoutMock(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())
	f.generator.err = llm.NewError(llm.KindAuth, 0, errNoCredentials)

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?", SessionID: "s-1"})

	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Nil(t, resp.Answer)
	assert.Equal(t, llm.KindAuth, resp.Error)
	assert.Contains(t, resp.Message, "default credentials")
	assert.Empty(t, f.conversations.appended)
}

func TestAnswer_MockModeDoesNotMaskUpstreamErrors(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{MockMode: true}, newTestCorpus())
	f.generator.err = llm.NewError(llm.KindUpstream, http.StatusTooManyRequests, errors.New("quota exceeded"))

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})

	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, llm.KindUpstream, resp.Error)
	assert.Nil(t, resp.Answer)
}

func TestAnswer_RetrievalFailures(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())

	resp := f.svc.Answer(context.Background(), Request{Question: "Three dimensional mystery"})
	assert.Equal(t, llm.KindConfig, resp.Error)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)

	f.embedder.err = errors.New("embedding provider down")
	resp = f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})
	assert.Equal(t, llm.KindUpstream, resp.Error)
	assert.Equal(t, http.StatusBadGateway, resp.Status)

	f.embedder.err = context.DeadlineExceeded
	resp = f.svc.Answer(context.Background(), Request{Question: "What is Section 302?"})
	assert.Equal(t, llm.KindTimeout, resp.Error)
	assert.Equal(t, http.StatusGatewayTimeout, resp.Status)

	assert.Empty(t, f.generator.prompts)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())
	resp := f.svc.Answer(context.Background(), Request{Question: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, llm.KindBadRequest, resp.Error)
	assert.Zero(t, f.embedder.calls)
}

func TestAnswer_SideEffectFailuresDoNotFailRequest(t *testing.T) {
	f := newAnswerFixture(AnswerOptions{}, newTestCorpus())
	f.conversations.err = errors.New("redis down")
	f.queryLogs.err = errors.New("mysql down")

	resp := f.svc.Answer(context.Background(), Request{Question: "What is Section 302?", SessionID: "s-1"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.NotNil(t, resp.Answer)
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"legal-rag-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type failingAuth struct{ err error }

func (a failingAuth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return nil, a.err
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, auth Authenticator) *VertexGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if auth == nil {
		auth = StaticAuthenticator{Token: "test-token"}
	}
	cfg := config.LLMConfig{
		Project:  "legal-proj",
		Location: "us-central1",
		Model:    "text-bison-001",
		Endpoint: srv.URL,
	}
	return NewVertexGateway(cfg, auth)
}

func TestGenerate_SendsPredictRequest(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody predictRequest
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[{"content":"Section 302 prescribes punishment for murder."}]}`))
	}, nil)

	answer, err := gw.Generate(context.Background(), "What is Section 302?", Params{MaxTokens: 512, Temperature: 0.2})
	require.NoError(t, err)

	assert.Equal(t, "Section 302 prescribes punishment for murder.", answer)
	assert.Equal(t, "/v1/projects/legal-proj/locations/us-central1/publishers/google/models/text-bison-001:predict", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	require.Len(t, gotBody.Instances, 1)
	assert.Equal(t, "What is Section 302?", gotBody.Instances[0].Content)
	assert.Equal(t, 512, gotBody.Parameters.MaxOutputTokens)
	assert.Equal(t, 0.2, gotBody.Parameters.Temperature)
}

func TestGenerate_DefaultEndpoint(t *testing.T) {
	gw := NewVertexGateway(config.LLMConfig{Project: "p", Location: "asia-south1", Model: "m"}, StaticAuthenticator{Token: "x"})
	assert.Equal(t, "https://asia-south1-aiplatform.googleapis.com/v1/projects/p/locations/asia-south1/publishers/google/models/m:predict", gw.URL())
}

func TestGenerate_AuthError(t *testing.T) {
	called := false
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, failingAuth{err: errors.New("could not find default credentials")})

	_, err := gw.Generate(context.Background(), "q", Params{})
	genErr := AsError(err)
	require.NotNil(t, genErr)
	assert.Equal(t, KindAuth, genErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, genErr.Status)
	assert.Contains(t, genErr.Message, "default credentials")
	assert.False(t, called, "provider must not be called without credentials")
}

func TestGenerate_UpstreamStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	}, nil)

	_, err := gw.Generate(context.Background(), "q", Params{})
	genErr := AsError(err)
	require.NotNil(t, genErr)
	assert.Equal(t, KindUpstream, genErr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, genErr.Status)
	assert.Contains(t, genErr.Message, "quota exceeded")
}

func TestGenerate_NonJSONBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway</html>"))
	}, nil)

	_, err := gw.Generate(context.Background(), "q", Params{})
	genErr := AsError(err)
	require.NotNil(t, genErr)
	assert.Equal(t, KindUpstream, genErr.Kind)
	assert.Equal(t, http.StatusBadGateway, genErr.Status)
}

func TestGenerate_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gw := NewVertexGateway(config.LLMConfig{Project: "p", Location: "l", Model: "m", Endpoint: url}, StaticAuthenticator{Token: "x"})
	_, err := gw.Generate(context.Background(), "q", Params{})
	genErr := AsError(err)
	require.NotNil(t, genErr)
	assert.Equal(t, KindUpstream, genErr.Kind)
	assert.Equal(t, http.StatusBadGateway, genErr.Status)
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, nil)
	defer close(release)
	gw.cfg.Timeout = 50 * time.Millisecond

	_, err := gw.Generate(context.Background(), "q", Params{})
	genErr := AsError(err)
	require.NotNil(t, genErr)
	assert.Equal(t, KindTimeout, genErr.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, genErr.Status)
}

func TestGenerate_NullBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}, nil)

	answer, err := gw.Generate(context.Background(), "q", Params{})
	require.NoError(t, err)
	assert.Empty(t, answer)
}

func TestGoogleAuthenticator_MissingExplicitFileFallsBackToADC(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())
	t.Setenv("CLOUDSDK_CONFIG", t.TempDir())
	t.Setenv("GCE_METADATA_HOST", "127.0.0.1:1")

	auth := GoogleAuthenticator{CredentialsFile: "/definitely/not/here.json"}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := auth.TokenSource(ctx)
	assert.Error(t, err)
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	structured := NewError(KindAuth, 0, errors.New("no creds"))
	assert.Same(t, structured, AsError(errors.Join(errors.New("ctx"), structured)))

	plain := AsError(errors.New("boom"))
	assert.Equal(t, KindUpstream, plain.Kind)
	assert.Equal(t, http.StatusBadGateway, plain.Status)

	timeout := AsError(context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, timeout.Kind)
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Authenticator 为一次生成调用获取凭证。
type Authenticator interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// GoogleAuthenticator 优先使用显式配置的 service account 文件，否则回退到 ADC。
type GoogleAuthenticator struct {
	CredentialsFile string
}

// TokenSource 解析凭证并立即换取一次 token，凭证不可用时在此处失败。
func (a GoogleAuthenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	creds, err := a.credentials(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, fmt.Errorf("fetch access token: %w", err)
	}
	return creds.TokenSource, nil
}

func (a GoogleAuthenticator) credentials(ctx context.Context) (*google.Credentials, error) {
	if a.CredentialsFile != "" {
		data, err := os.ReadFile(a.CredentialsFile)
		if err == nil {
			creds, err := google.CredentialsFromJSON(ctx, data, cloudPlatformScope)
			if err != nil {
				return nil, fmt.Errorf("parse credentials file %s: %w", a.CredentialsFile, err)
			}
			return creds, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read credentials file %s: %w", a.CredentialsFile, err)
		}
	}
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("find default credentials: %w", err)
	}
	return creds, nil
}

// StaticAuthenticator 使用固定 token，便于对接本地网关或测试。
type StaticAuthenticator struct {
	Token string
}

func (a StaticAuthenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if a.Token == "" {
		return nil, errors.New("static token is empty")
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.Token, TokenType: "Bearer"}), nil
}

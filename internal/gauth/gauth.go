// Package gauth provides the ambient-credentials token source used by the
// Vertex providers when GOOGLE_APPLICATION_CREDENTIALS is set instead of a
// pre-minted access token.
package gauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/llmclient/llmclient/llmerr"
)

// cloudPlatformScope is the OAuth2 scope Vertex's streamRawPredict /
// streamGenerateContent endpoints require.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// TokenSource is the minimal surface providers depend on: a single call
// that returns a bearer token string for the current request. Both the
// pre-minted-token and ambient-credentials modes implement it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// staticToken wraps a caller-supplied, already-minted access token.
type staticToken struct {
	token string
}

// Static returns a TokenSource that always yields the same pre-minted
// bearer token, for callers that manage refresh themselves.
func Static(token string) TokenSource {
	return staticToken{token: token}
}

func (s staticToken) Token(ctx context.Context) (string, error) {
	return s.token, nil
}

// ambientSource obtains tokens from Application Default Credentials,
// re-resolving (and thus potentially refreshing) on every call — this
// layer does not cache, per the module's resource policy of delegating
// caching/refresh to the credentials provider.
type ambientSource struct{}

// Ambient returns a TokenSource backed by Application Default
// Credentials (the GOOGLE_APPLICATION_CREDENTIALS file, or the runtime
// metadata server when unset and running on GCP).
func Ambient() TokenSource {
	return ambientSource{}
}

func (ambientSource) Token(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
	if err != nil {
		return "", llmerr.Auth("vertex", "failed to resolve application default credentials", err)
	}
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return "", llmerr.Auth("vertex", "failed to obtain token from credentials provider", err)
	}
	return tokenBearer(tok), nil
}

func tokenBearer(tok *oauth2.Token) string {
	return tok.AccessToken
}

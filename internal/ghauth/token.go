package ghauth

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"github.com/poonai/grimpoteuthis/internal/login"
)

var errNoToken = errors.New("no GitHub token registered")

// tokenSource reads the registered token on every request, so a later
// registration is picked up by clients that already exist.
type tokenSource struct {
	provider login.TokenProvider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	if s.provider == nil {
		return nil, errNoToken
	}
	tok := s.provider()
	if tok == nil || tok.Token == "" {
		return nil, errNoToken
	}
	return &oauth2.Token{AccessToken: tok.Token, TokenType: "token"}, nil
}

// NewAPIClient returns a GitHub client that authenticates with the token
// handed out by p.
func NewAPIClient(ctx context.Context, p login.TokenProvider, baseURL *url.URL) *github.Client {
	tc := oauth2.NewClient(ctx, &tokenSource{provider: p})
	client := github.NewClient(tc)
	if baseURL != nil {
		client.BaseURL = baseURL
	}
	return client
}

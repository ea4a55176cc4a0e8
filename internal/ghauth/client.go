// Package ghauth implements login.AuthClient against GitHub's
// authorizations API.
package ghauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cli/oauth/api"
	"github.com/golang/protobuf/proto"
	"github.com/google/go-github/github"

	"github.com/poonai/grimpoteuthis/internal/login"
)

const (
	defaultTwoFactorMessage      = "Two-factor authentication code required"
	existingAuthorizationMessage = "An authorization for this application already exists. " +
		"Revoke it under Settings > Applications on GitHub and sign in again"
)

// Client keeps the credentials of the last Authenticate call so the
// one-time password can be sent without asking for them again.
type Client struct {
	baseURL   *url.URL
	transport http.RoundTripper

	mu       sync.Mutex
	username string
	password string
}

type Option func(*Client)

// WithBaseURL points the client at a GitHub Enterprise API root.
func WithBaseURL(u *url.URL) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTransport sets the round tripper underneath basic auth.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParseBaseURL parses an API root, making sure it ends in a slash.
func ParseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API url %q: %w", raw, err)
	}
	return u, nil
}

func (c *Client) Authenticate(ctx context.Context, username, password string, app login.App) (*api.AccessToken, error) {
	c.mu.Lock()
	c.username, c.password = username, password
	c.mu.Unlock()
	return c.authorize(ctx, username, password, "", app)
}

func (c *Client) AuthenticateWithOTP(ctx context.Context, app login.App, otp string) (*api.AccessToken, error) {
	c.mu.Lock()
	username, password := c.username, c.password
	c.mu.Unlock()
	if username == "" {
		return nil, &login.AuthFailureError{Message: "no credentials to complete two-factor authentication"}
	}
	return c.authorize(ctx, username, password, otp, app)
}

func (c *Client) authorize(ctx context.Context, username, password, otp string, app login.App) (*api.AccessToken, error) {
	tp := &github.BasicAuthTransport{
		Username:  username,
		Password:  password,
		OTP:       otp,
		Transport: c.transport,
	}
	client := github.NewClient(tp.Client())
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}

	scopes := make([]github.Scope, 0, len(app.Scopes))
	for _, s := range app.Scopes {
		scopes = append(scopes, github.Scope(s))
	}
	// get the existing authorization for this app or create a new one.
	auth, _, err := client.Authorizations.GetOrCreateForApp(ctx, app.ClientID, &github.AuthorizationRequest{
		Scopes:       scopes,
		Note:         proto.String(app.Note),
		ClientSecret: proto.String(app.ClientSecret),
	})
	if err != nil {
		return nil, translate(err)
	}
	// GitHub only returns the token when the authorization is created.
	if auth.GetToken() == "" {
		return nil, &login.AuthFailureError{Message: existingAuthorizationMessage}
	}
	return &api.AccessToken{
		Token: auth.GetToken(),
		Type:  "token",
		Scope: strings.Join(app.Scopes, ","),
	}, nil
}

// translate maps go-github errors onto the two kinds the login flow knows.
func translate(err error) error {
	var tfa *github.TwoFactorAuthError
	if errors.As(err, &tfa) {
		msg := tfa.Message
		if msg == "" {
			msg = defaultTwoFactorMessage
		}
		return &login.TwoFactorRequiredError{Message: msg}
	}
	var resp *github.ErrorResponse
	if errors.As(err, &resp) && resp.Message != "" {
		return &login.AuthFailureError{Message: resp.Message}
	}
	return &login.AuthFailureError{Message: err.Error()}
}

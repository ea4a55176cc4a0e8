package ghauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cli/oauth/api"
	"github.com/stretchr/testify/require"

	"github.com/poonai/grimpoteuthis/internal/login"
)

type seenRequest struct {
	method   string
	path     string
	user     string
	pass     string
	otp      string
	scopes   []string
	note     string
	secret   string
	hasBasic bool
}

// fakeGitHub answers the app authorization endpoint. Accounts with 2FA
// get a challenge until the expected OTP header is sent.
type fakeGitHub struct {
	mu       sync.Mutex
	seen     []seenRequest
	password string
	otp      string
	token    string
}

func (g *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	var body struct {
		Scopes       []string `json:"scopes"`
		Note         string   `json:"note"`
		ClientSecret string   `json:"client_secret"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	g.mu.Lock()
	g.seen = append(g.seen, seenRequest{
		method: r.Method, path: r.URL.Path,
		user: user, pass: pass, hasBasic: ok,
		otp:    r.Header.Get("X-GitHub-OTP"),
		scopes: body.Scopes, note: body.Note, secret: body.ClientSecret,
	})
	g.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path != "/authorizations/clients/client-id":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	case pass != g.password:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Bad credentials"}`))
	case g.otp != "" && r.Header.Get("X-GitHub-OTP") == "":
		w.Header().Set("X-GitHub-OTP", "required; sms")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Must specify two-factor authentication OTP code."}`))
	case g.otp != "" && r.Header.Get("X-GitHub-OTP") != g.otp:
		w.Header().Set("X-GitHub-OTP", "required; sms")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 1, "token": g.token})
	}
}

func (g *fakeGitHub) requests() []seenRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]seenRequest(nil), g.seen...)
}

func newTestClient(t *testing.T, g *fakeGitHub) *Client {
	t.Helper()
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	u, err := ParseBaseURL(srv.URL)
	require.NoError(t, err)
	return New(WithBaseURL(u))
}

var testApp = login.App{
	Scopes:       login.DefaultScopes,
	Note:         "grimpoteuthis",
	ClientID:     "client-id",
	ClientSecret: "client-secret",
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	g := &fakeGitHub{password: "secret", token: "abc123"}
	c := newTestClient(t, g)

	tok, err := c.Authenticate(context.Background(), "alice", "secret", testApp)
	require.NoError(t, err)
	require.Equal(t, "abc123", tok.Token)
	require.Equal(t, "token", tok.Type)
	require.Equal(t, "user,repo,delete_repo,notifications,gist", tok.Scope)

	reqs := g.requests()
	require.Len(t, reqs, 1)
	require.Equal(t, http.MethodPut, reqs[0].method)
	require.Equal(t, "/authorizations/clients/client-id", reqs[0].path)
	require.True(t, reqs[0].hasBasic)
	require.Equal(t, "alice", reqs[0].user)
	require.Equal(t, "secret", reqs[0].pass)
	require.Empty(t, reqs[0].otp)
	require.Equal(t, login.DefaultScopes, reqs[0].scopes)
	require.Equal(t, "grimpoteuthis", reqs[0].note)
	require.Equal(t, "client-secret", reqs[0].secret)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeGitHub{password: "secret", token: "abc123"})

	_, err := c.Authenticate(context.Background(), "alice", "wrong", testApp)
	var failure *login.AuthFailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, "Bad credentials", failure.Message)
}

func TestTwoFactorHandshake(t *testing.T) {
	t.Parallel()

	g := &fakeGitHub{password: "secret", otp: "123456", token: "xyz789"}
	c := newTestClient(t, g)

	_, err := c.Authenticate(context.Background(), "alice", "secret", testApp)
	var tfa *login.TwoFactorRequiredError
	require.ErrorAs(t, err, &tfa)
	require.Equal(t, "Must specify two-factor authentication OTP code.", tfa.Message)

	_, err = c.AuthenticateWithOTP(context.Background(), testApp, "000000")
	require.ErrorAs(t, err, &tfa)
	require.Equal(t, defaultTwoFactorMessage, tfa.Message)

	tok, err := c.AuthenticateWithOTP(context.Background(), testApp, "123456")
	require.NoError(t, err)
	require.Equal(t, "xyz789", tok.Token)

	reqs := g.requests()
	require.Len(t, reqs, 3)
	last := reqs[2]
	require.Equal(t, "alice", last.user)
	require.Equal(t, "secret", last.pass)
	require.Equal(t, "123456", last.otp)
}

func TestAuthenticateWithOTPWithoutCredentials(t *testing.T) {
	t.Parallel()

	g := &fakeGitHub{password: "secret", token: "abc123"}
	c := newTestClient(t, g)

	_, err := c.AuthenticateWithOTP(context.Background(), testApp, "123456")
	var failure *login.AuthFailureError
	require.ErrorAs(t, err, &failure)
	require.Empty(t, g.requests())
}

func TestAuthenticateEmptyToken(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeGitHub{password: "secret"})

	_, err := c.Authenticate(context.Background(), "alice", "secret", testApp)
	var failure *login.AuthFailureError
	require.ErrorAs(t, err, &failure)
	require.Equal(t, existingAuthorizationMessage, failure.Message)
	require.Contains(t, failure.Message, "Revoke")
}

func TestFlowAgainstFakeGitHub(t *testing.T) {
	t.Parallel()

	g := &fakeGitHub{password: "secret", otp: "123456", token: "xyz789"}
	reg := login.NewRegistry()
	f := login.New(newTestClient(t, g), reg, testApp)

	f.SubmitCredentials(context.Background(), "alice", "secret")
	require.Equal(t, login.AwaitingOTP, f.Snapshot().State)

	f.SubmitOneTimePassword(context.Background(), "123456")
	require.Equal(t, login.Authenticated, f.Snapshot().State)
	require.Equal(t, "xyz789", reg.Token())
}

func TestParseBaseURL(t *testing.T) {
	t.Parallel()

	u, err := ParseBaseURL("https://ghe.example.com/api/v3")
	require.NoError(t, err)
	require.Equal(t, "https://ghe.example.com/api/v3/", u.String())

	_, err = ParseBaseURL("://bad")
	require.Error(t, err)
}

func TestNewAPIClient(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		gotAuth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"login":"alice"}`))
	}))
	t.Cleanup(srv.Close)
	u, err := ParseBaseURL(srv.URL)
	require.NoError(t, err)

	reg := login.NewRegistry()
	reg.Register(func() *api.AccessToken { return &api.AccessToken{Token: "abc123"} })

	client := NewAPIClient(context.Background(), reg.Provider(), u)
	user, _, err := client.Users.Get(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "alice", user.GetLogin())
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "token abc123", gotAuth)
}

func TestTokenSourceWithoutToken(t *testing.T) {
	t.Parallel()

	_, err := (&tokenSource{}).Token()
	require.ErrorIs(t, err, errNoToken)

	_, err = (&tokenSource{provider: func() *api.AccessToken { return nil }}).Token()
	require.ErrorIs(t, err, errNoToken)
}

package login

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/cli/oauth/api"
)

const (
	passwordSuccessMessage = "Successfully authenticated with username password"
	otpSuccessMessage      = "Successfully authenticated with One Time Password"
)

// Snapshot is a copy of the fields a view renders.
type Snapshot struct {
	Username               string
	Password               string
	OneTimePassword        string
	RequireOneTimePassword bool
	ErrorMessage           string
	State                  State
	Busy                   bool
	CanSubmitCredentials   bool
	CanSubmitOTP           bool
}

// Listener is told about every change to a Flow.
type Listener interface {
	FlowChanged(s Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(s Snapshot)

func (f ListenerFunc) FlowChanged(s Snapshot) { f(s) }

// Option configures a Flow.
type Option func(*Flow)

// WithListener sets the listener notified after each mutation.
func WithListener(l Listener) Option {
	return func(f *Flow) { f.listener = l }
}

// WithLogger sets the logger. Credentials are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) { f.log = l }
}

// Flow drives one login session: username and password first, then a
// one-time password if GitHub challenges for it.
type Flow struct {
	client   AuthClient
	registry CredentialRegistry
	app      App
	listener Listener
	log      *slog.Logger

	mu      sync.Mutex
	state   State
	busy    bool
	user    string
	pass    string
	otp     string
	needOTP bool
	message string
	token   *api.AccessToken
}

// New returns a Flow in the Idle state. An App without scopes gets
// DefaultScopes.
func New(client AuthClient, registry CredentialRegistry, app App, opts ...Option) *Flow {
	if len(app.Scopes) == 0 {
		app.Scopes = append([]string(nil), DefaultScopes...)
	}
	f := &Flow{
		client:   client,
		registry: registry,
		app:      app,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) SetUsername(v string) {
	f.mu.Lock()
	f.user = v
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) SetPassword(v string) {
	f.mu.Lock()
	f.pass = v
	f.mu.Unlock()
	f.notify()
}

func (f *Flow) SetOneTimePassword(v string) {
	f.mu.Lock()
	f.otp = v
	f.mu.Unlock()
	f.notify()
}

// CanSubmitCredentials reports whether SubmitCredentials would reach the
// AuthClient with the current fields.
func (f *Flow) CanSubmitCredentials() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitCredentials()
}

// CanSubmitOneTimePassword reports whether SubmitOneTimePassword would
// reach the AuthClient with the current fields.
func (f *Flow) CanSubmitOneTimePassword() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSubmitOTP()
}

func (f *Flow) canSubmitCredentials() bool {
	return !f.busy && f.state != Authenticated && !blank(f.user) && !blank(f.pass)
}

// canSubmitOTP also holds in Failed once GitHub has issued a challenge.
func (f *Flow) canSubmitOTP() bool {
	if f.busy || blank(f.otp) {
		return false
	}
	return f.state == AwaitingOTP || (f.state == Failed && f.needOTP)
}

// SubmitCredentials sets username and password and, when enabled, asks the
// AuthClient for a token. It reports whether a request was made. Failures
// end up in the snapshot's ErrorMessage.
func (f *Flow) SubmitCredentials(ctx context.Context, username, password string) bool {
	f.mu.Lock()
	f.user, f.pass = username, password
	if !f.canSubmitCredentials() {
		f.mu.Unlock()
		f.notify()
		return false
	}
	f.busy = true
	app := f.app
	f.mu.Unlock()
	f.notify()

	f.log.Info("submitting credentials", "username", username)
	tok, err := f.client.Authenticate(ctx, username, password, app)

	f.mu.Lock()
	f.busy = false
	switch {
	case err == nil:
		f.succeed(tok, passwordSuccessMessage)
		f.log.Info("authenticated", "method", "password")
	case IsTwoFactorRequired(err):
		f.message = describe(err)
		f.needOTP = true
		f.state = AwaitingOTP
		f.log.Info("two-factor code required")
	default:
		f.message = describe(err)
		f.state = Failed
		f.log.Warn("authentication failed", "error", f.message)
	}
	f.mu.Unlock()
	f.notify()
	return true
}

// SubmitOneTimePassword sets the one-time password and, when enabled,
// completes the challenge started by SubmitCredentials.
func (f *Flow) SubmitOneTimePassword(ctx context.Context, otp string) bool {
	f.mu.Lock()
	f.otp = otp
	if !f.canSubmitOTP() {
		f.mu.Unlock()
		f.notify()
		return false
	}
	f.busy = true
	app := f.app
	f.mu.Unlock()
	f.notify()

	f.log.Info("submitting one-time password")
	tok, err := f.client.AuthenticateWithOTP(ctx, app, otp)

	f.mu.Lock()
	f.busy = false
	if err != nil {
		f.message = describe(err)
		f.state = AwaitingOTP
		f.log.Warn("one-time password rejected", "error", f.message)
	} else {
		f.otp = ""
		f.succeed(tok, otpSuccessMessage)
		f.log.Info("authenticated", "method", "otp")
	}
	f.mu.Unlock()
	f.notify()
	return true
}

// succeed must be called with f.mu held.
func (f *Flow) succeed(tok *api.AccessToken, msg string) {
	if tok == nil || tok.Token == "" {
		f.message = "GitHub returned an empty token"
		if f.state != AwaitingOTP {
			f.state = Failed
		}
		return
	}
	f.token = tok
	f.registry.Register(func() *api.AccessToken { return tok })
	f.user, f.pass = "", ""
	f.message = msg
	f.state = Authenticated
}

// Token returns the issued token, or nil before a successful login.
func (f *Flow) Token() *api.AccessToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Flow) snapshot() Snapshot {
	return Snapshot{
		Username:               f.user,
		Password:               f.pass,
		OneTimePassword:        f.otp,
		RequireOneTimePassword: f.needOTP,
		ErrorMessage:           f.message,
		State:                  f.state,
		Busy:                   f.busy,
		CanSubmitCredentials:   f.canSubmitCredentials(),
		CanSubmitOTP:           f.canSubmitOTP(),
	}
}

func (f *Flow) notify() {
	if f.listener == nil {
		return
	}
	f.listener.FlowChanged(f.Snapshot())
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

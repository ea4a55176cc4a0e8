package main

import (
	"context"
	"sync"

	"github.com/cli/oauth/api"

	"github.com/poonai/grimpoteuthis/internal/login"
)

// fakeAuth answers with canned tokens and errors.
type fakeAuth struct {
	mu       sync.Mutex
	calls    int
	otpCalls int
	lastOTP  string
	token    *api.AccessToken
	err      error
	otpToken *api.AccessToken
	otpErr   error
}

func (f *fakeAuth) Authenticate(ctx context.Context, username, password string, app login.App) (*api.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.token, f.err
}

func (f *fakeAuth) AuthenticateWithOTP(ctx context.Context, app login.App, otp string) (*api.AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpCalls++
	f.lastOTP = otp
	return f.otpToken, f.otpErr
}

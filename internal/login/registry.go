package login

import (
	"sync"

	"github.com/cli/oauth/api"
)

// TokenProvider hands out the token of an authenticated session.
type TokenProvider func() *api.AccessToken

// CredentialRegistry receives the provider once a login succeeds.
type CredentialRegistry interface {
	Register(p TokenProvider)
}

// Registry is the process-wide in-memory CredentialRegistry.
//
// Registration is last-writer-wins. Only one Flow is expected to register
// at a time; the lock keeps reads consistent but does not order writers.
type Registry struct {
	mu       sync.RWMutex
	provider TokenProvider
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register replaces any earlier provider.
func (r *Registry) Register(p TokenProvider) {
	r.mu.Lock()
	r.provider = p
	r.mu.Unlock()
}

// Provider returns the registered provider, or nil.
func (r *Registry) Provider() TokenProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provider
}

// Token returns the current token string, empty when nothing is registered.
func (r *Registry) Token() string {
	p := r.Provider()
	if p == nil {
		return ""
	}
	tok := p()
	if tok == nil {
		return ""
	}
	return tok.Token
}

package login

import (
	"context"

	"github.com/cli/oauth/api"
)

// DefaultScopes are the grants requested for every token.
var DefaultScopes = []string{"user", "repo", "delete_repo", "notifications", "gist"}

// App identifies the registered OAuth application the token is issued for.
type App struct {
	Scopes       []string
	Note         string
	ClientID     string
	ClientSecret string
}

// AuthClient exchanges credentials for a token.
//
// Implementations are stateful: AuthenticateWithOTP reuses the username and
// password given to the most recent Authenticate call. Both methods fail
// with *TwoFactorRequiredError or *AuthFailureError.
type AuthClient interface {
	Authenticate(ctx context.Context, username, password string, app App) (*api.AccessToken, error)
	AuthenticateWithOTP(ctx context.Context, app App, otp string) (*api.AccessToken, error)
}

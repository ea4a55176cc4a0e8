package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cli/oauth/api"
	"github.com/joho/godotenv"
	"github.com/kirsle/configdir"

	"github.com/poonai/grimpoteuthis/internal/ghauth"
	"github.com/poonai/grimpoteuthis/internal/login"
)

const appName = "grimpoteuthis"

type config struct {
	ClientID     string
	ClientSecret string
	APIURL       string
	Note         string
	Username     string
	Password     string
	OTP          string
	LogLevel     string
	LogFormat    string
}

// loadConfig reads .env, if present, and then the environment.
func loadConfig() config {
	// a missing .env is fine, everything can come from the environment.
	_ = godotenv.Load()
	return config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		APIURL:       getEnv("GITHUB_API_URL", "https://api.github.com/"),
		Note:         getEnv("GRIMPOTEUTHIS_NOTE", appName),
		Username:     os.Getenv("GITHUB_USERNAME"),
		Password:     os.Getenv("GITHUB_PASSWORD"),
		OTP:          os.Getenv("GITHUB_OTP"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// newLogger builds the logger for w. The TUI owns the terminal, so main
// points this at a file in the config folder.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("app", appName)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// configDir returns the folder holding the token and the log, creating it
// when missing.
func configDir() (string, error) {
	cfgPath := configdir.LocalConfig(appName)
	if err := configdir.MakePath(cfgPath); err != nil {
		return "", err
	}
	return cfgPath, nil
}

func tokenPath(dir string) string {
	return filepath.Join(dir, "token.json")
}

// storeToken will store the access token in the given file, replacing
// any earlier one.
func storeToken(path string, token *api.AccessToken) error {
	if token == nil {
		return errors.New("no token to store")
	}
	buf, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0600)
}

// getToken will return the stored token, or nil if there is none.
func getToken(path string) (*api.AccessToken, error) {
	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	token := &api.AccessToken{}
	if err := json.Unmarshal(buf, token); err != nil {
		return nil, err
	}
	if token.Token == "" {
		return nil, nil
	}
	return token, nil
}

// fileRegistry is the process registry, also writing each registered
// token to disk so the next run can reuse it.
type fileRegistry struct {
	*login.Registry
	path string
	log  *slog.Logger
	err  error
}

func newFileRegistry(path string, log *slog.Logger) *fileRegistry {
	return &fileRegistry{Registry: login.NewRegistry(), path: path, log: log}
}

func (r *fileRegistry) Register(p login.TokenProvider) {
	r.Registry.Register(p)
	r.err = storeToken(r.path, p())
	if r.err != nil {
		r.log.Error("storing token", "path", r.path, "error", r.err)
		return
	}
	r.log.Debug("token stored", "path", r.path)
}

// Err returns the error of the last write to disk, if it failed.
func (r *fileRegistry) Err() error {
	return r.err
}

// signedInAs asks GitHub which account the registered token belongs to.
func signedInAs(ctx context.Context, p login.TokenProvider, baseURL *url.URL) (string, error) {
	client := ghauth.NewAPIClient(ctx, p, baseURL)
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

// maskToken keeps just enough of a token to recognise it.
func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

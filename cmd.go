/*----------------------------------------------------------------------------------------
 * Copyright (c) Microsoft Corporation. All rights reserved.
 * Licensed under the MIT License. See LICENSE in the project root for license information.
 *---------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cli/oauth/api"

	"github.com/poonai/grimpoteuthis/internal/ghauth"
	"github.com/poonai/grimpoteuthis/internal/login"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := loadConfig()

	batch := flag.Bool("batch", false, "log in without the interactive form, reading credentials from the environment")
	copyToken := flag.Bool("copy", false, "copy the token to the clipboard after logging in")
	relogin := flag.Bool("relogin", false, "log in again even if a token is already stored")
	flag.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "client id of the registered GitHub application")
	flag.StringVar(&cfg.ClientSecret, "client-secret", cfg.ClientSecret, "client secret of the registered GitHub application")
	flag.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "GitHub API url")
	flag.StringVar(&cfg.Username, "username", cfg.Username, "GitHub username")
	flag.Parse()

	dir, err := configDir()
	if err != nil {
		log.Fatalf("error while creating config folder: %s", err.Error())
	}
	logFile, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		log.Fatalf("error while opening log file: %s", err.Error())
	}
	defer logFile.Close()
	logger := newLogger(logFile, cfg.LogLevel, cfg.LogFormat)

	baseURL, err := ghauth.ParseBaseURL(cfg.APIURL)
	if err != nil {
		fmt.Println(errStyle.Render(err.Error()))
		return 1
	}
	ctx := context.Background()

	path := tokenPath(dir)
	if !*relogin {
		token, err := getToken(path)
		if err != nil {
			fmt.Println(errStyle.Render(fmt.Sprintf("error while retriving token: %s", err.Error())))
			return 1
		}
		if token != nil {
			cached := func() *api.AccessToken { return token }
			name, err := signedInAs(ctx, cached, baseURL)
			if err == nil {
				fmt.Printf("Already signed in as %s (token %s). Use -relogin to sign in again.\n", name, maskToken(token.Token))
				return 0
			}
			logger.Warn("stored token rejected", "error", err)
			fmt.Println("The stored token no longer works, signing in again.")
		}
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		fmt.Println(errStyle.Render("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set"))
		return 1
	}

	registry := newFileRegistry(path, logger)
	app := login.App{
		Scopes:       login.DefaultScopes,
		Note:         cfg.Note,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
	client := ghauth.New(ghauth.WithBaseURL(baseURL))

	var flow *login.Flow
	if *batch {
		flow = login.New(client, registry, app, login.WithLogger(logger))
		sp, err := newSpinner(os.Stderr)
		if err != nil {
			fmt.Println(errStyle.Render(fmt.Sprintf("error while creating spinner: %s", err.Error())))
			return 1
		}
		if err := runBatch(ctx, flow, cfg, sp, os.Stdin, os.Stderr); err != nil {
			fmt.Println(errStyle.Render(err.Error()))
			return 1
		}
	} else {
		updates := make(chan login.Snapshot, 32)
		flow = login.New(client, registry, app, login.WithLogger(logger), login.WithListener(chanListener(updates)))
		flow.SetUsername(cfg.Username)
		model := newModel(ctx, flow, updates)
		p := tea.NewProgram(model)
		if err := p.Start(); err != nil {
			fmt.Printf("Alas, there's been an error: %v", err)
			return 1
		}
		fmt.Println(model.result)
	}

	code := finish(ctx, os.Stdout, flow.Token(), registry, baseURL, logger)
	if code != 0 || !*copyToken {
		return code
	}
	if err := clipboard.WriteAll(flow.Token().Token); err != nil {
		logger.Warn("copying token to clipboard", "error", err)
		fmt.Println(errStyle.Render("could not copy the token to the clipboard"))
		return 0
	}
	fmt.Println("Token copied to your clipboard")
	return 0
}

// finish reports the outcome of a login. A token that could not be written
// to disk fails the run.
func finish(ctx context.Context, w io.Writer, token *api.AccessToken, registry *fileRegistry, baseURL *url.URL, logger *slog.Logger) int {
	if token == nil {
		return 1
	}
	if err := registry.Err(); err != nil {
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("error while storing token: %s", err.Error())))
		return 1
	}
	fmt.Fprintf(w, "Token %s stored in %s\n", maskToken(token.Token), registry.path)
	name, err := signedInAs(ctx, registry.Provider(), baseURL)
	if err != nil {
		logger.Warn("looking up signed in user", "error", err)
		return 0
	}
	fmt.Fprintf(w, "Signed in as %s\n", name)
	return 0
}

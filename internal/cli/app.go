// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared startup for commands that talk to a chatsync backend.

package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/session"
)

// App bundles the client-side services a command needs.
type App struct {
	Config     *config.Config
	Store      *session.FileStore
	Session    *session.Session
	Client     *backend.Client
	Controller *chat.Controller

	// pinned is set when credentials came from the environment, which the
	// token file must not override.
	pinned    bool
	logCloser io.Closer
}

// loadConfig loads configuration and installs the default logger.
// ownsTerminal sends logs to a file so they do not corrupt the screen.
func loadConfig(args Args, ownsTerminal bool) (*config.Config, io.Closer, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, nil, &ConfigError{Err: err}
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	closer, err := cfg.Log.Setup(ownsTerminal)
	if err != nil {
		return nil, nil, &ConfigError{Err: err}
	}
	return cfg, closer, nil
}

// tokenStore opens the token file, sealed when a passphrase is configured.
func tokenStore(cfg *config.Config) *session.FileStore {
	return session.NewFileStore(cfg.Client.TokenFile, session.WithPassphrase(cfg.Client.TokenPassphrase))
}

// Bootstrap loads configuration and credentials and wires the backend
// client and chat controller.
func Bootstrap(args Args, ownsTerminal bool) (*App, error) {
	cfg, closer, err := loadConfig(args, ownsTerminal)
	if err != nil {
		return nil, err
	}

	store := tokenStore(cfg)
	sess, err := session.Restore(store)
	if err != nil {
		// A corrupt token file means signing in again, not a fatal error.
		slog.Warn("could not restore session", "path", store.Path(), "error", err)
	}

	pinned := cfg.Client.Token != ""
	if pinned {
		sess.Set(session.Credentials{Token: cfg.Client.Token, UserID: cfg.Client.UserID})
	} else if cfg.Client.UserID != "" {
		sess.UpdateUserID(cfg.Client.UserID)
	}

	client := backend.New(backend.Options{
		BaseURL:        cfg.Client.BaseURL,
		RequestTimeout: cfg.Client.RequestTimeout,
		UserAgent:      "chatsync/" + Version,
	}, sess)

	ctrl := chat.New(client, sess, chat.Options{
		FetchTimeout:   cfg.Client.FetchTimeout,
		SendTimeout:    cfg.Client.SendTimeout,
		RequestTimeout: cfg.Client.RequestTimeout,
	})

	slog.Debug("client ready",
		"base_url", cfg.Client.BaseURL,
		"user", sess.UserID(),
		"token", sess.Fingerprint(),
		"pinned", pinned)

	return &App{
		Config:     cfg,
		Store:      store,
		Session:    sess,
		Client:     client,
		Controller: ctrl,
		pinned:     pinned,
		logCloser:  closer,
	}, nil
}

// WatchSession follows the token file until ctx is done so a login or
// logout in another terminal applies here too. It does nothing when the
// credentials are pinned by the environment.
func (a *App) WatchSession(ctx context.Context) {
	if a.pinned {
		return
	}
	w, err := session.NewWatcher(a.Store, a.Session, 0)
	if err != nil {
		slog.Warn("session file will not be watched", "error", err)
		return
	}
	go w.Run(ctx)
}

// Close stops the controller and flushes the log file.
func (a *App) Close() {
	a.Controller.Close()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

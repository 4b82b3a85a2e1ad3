// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Running the chat backend.
//
// Command: serve
// Short:   Serve the chat history API
// Aliases: server
//
// Examples:
//   chatsync serve                          Listen on server.addr from config
//   chatsync serve --addr :9000             Override the listen address
//   chatsync serve --db ./chats.db          Use a SQLite file
//   chatsync serve --no-migrate             Skip schema creation

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/llm"
	"github.com/jeranaias/chatsync/internal/server"
	"github.com/jeranaias/chatsync/internal/storage"
)

// HandleServe opens storage, builds the reply generator and serves until
// ctx ends.
func HandleServe(ctx context.Context, args Args) error {
	cfg, closer, err := loadConfig(args, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	rest := args.Rest
	if addr := rest.Flag("addr", "a"); addr != "" {
		cfg.Server.Addr = addr
	}
	if db := rest.Flag("db"); db != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.DSN = db
	}

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	if !rest.BoolFlag("no-migrate") {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate storage: %w", err)
		}
	}

	gen, err := llm.New(cfg.LLM)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg.Server, store, gen)
	if err != nil {
		return &ConfigError{Err: err}
	}

	slog.Info("starting chatsync backend",
		"version", Version,
		"driver", store.Driver(),
		"generator", gen.Name(),
		"origins", cfg.Server.AllowedOrigins)
	return srv.Run(ctx)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// tui.go - The full-screen chat command.

package cli

import (
	"context"
	"log/slog"

	uichat "github.com/jeranaias/chatsync/internal/ui/chat"
	"github.com/jeranaias/chatsync/internal/ui/styles"
)

// HandleTUI runs the full-screen chat. Without a terminal it falls back to
// the line-based chat.
func HandleTUI(ctx context.Context, args Args) error {
	if err := RequiresTTY("the full-screen chat"); err != nil {
		slog.Debug("no terminal, using line chat")
		return HandleChat(ctx, args)
	}

	app, err := Bootstrap(args, true)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.WatchSession(ctx)

	theme := styles.NewTheme(app.Config.UI.Theme)
	return uichat.Run(ctx, app.Controller, theme, uichat.Options{
		Markdown:       app.Config.UI.Markdown,
		ShowTimestamps: app.Config.UI.ShowTimestamps,
	})
}

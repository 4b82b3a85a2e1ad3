// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	chatctl "github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/ui/styles"
)

// Run shows the chat view until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *chatctl.Controller, theme *styles.Theme, opts Options) error {
	p := tea.NewProgram(
		New(ctrl, theme, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	// Snapshots are published from inside controller calls, some of which
	// run on the program's own update loop. Send never blocks that loop.
	ctrl.OnChange(func(s chatctl.Snapshot) {
		go p.Send(SnapshotMsg{Snapshot: s})
	})

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}

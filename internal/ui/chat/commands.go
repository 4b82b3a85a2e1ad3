// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatsync/internal/backend"
)

// Operation names carried by opDoneMsg.
const (
	opFetch  = "fetch"
	opRetry  = "retry"
	opSend   = "send"
	opAttach = "attach"
	opDelete = "delete"
	opClear  = "clear"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func fetchCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opFetch, err: ctrl.Fetch(context.Background())}
	}
}

func retryCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opRetry, err: ctrl.Retry(context.Background())}
	}
}

func sendCmd(ctrl Controller, text string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opSend, err: ctrl.Send(context.Background(), text)}
	}
}

// attachCmd opens path and sends it with text.
func attachCmd(ctrl Controller, path, text string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return opDoneMsg{op: opAttach, err: fmt.Errorf("open attachment: %w", err)}
		}
		defer f.Close()

		file := backend.File{Name: filepath.Base(path), Reader: f}
		return opDoneMsg{op: opSend, err: ctrl.Send(context.Background(), text, file)}
	}
}

func deleteCmd(ctrl Controller, id string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opDelete, err: ctrl.Delete(context.Background(), id)}
	}
}

func clearCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opClear, err: ctrl.ClearHistory(context.Background())}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// commandHelp lists the slash commands.
const commandHelp = "/new  /delete  /clear  /retry  /attach PATH MESSAGE  /help  /quit"

// runCommand executes a "/" command typed into the input.
func (m Model) runCommand(line string) (Model, tea.Cmd) {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/new":
		m.ctrl.NewChat()
		m.status = "Started a new chat"
		m.pull()
		return m, nil

	case "/delete":
		id := m.snap.ActiveChatID
		if id == "" {
			m.status = "No chat selected"
			return m, nil
		}
		return m, deleteCmd(m.ctrl, id)

	case "/clear":
		return m, clearCmd(m.ctrl)

	case "/retry":
		return m, retryCmd(m.ctrl)

	case "/attach":
		path, text, _ := strings.Cut(rest, " ")
		if path == "" || strings.TrimSpace(text) == "" {
			m.status = "Usage: /attach PATH MESSAGE"
			return m, nil
		}
		return m, attachCmd(m.ctrl, path, strings.TrimSpace(text))

	case "/help":
		m.status = commandHelp
		return m, nil

	case "/quit", "/exit":
		return m, tea.Quit

	default:
		m.status = fmt.Sprintf("Unknown command %s. Try /help", name)
		return m, nil
	}
}

// statusFor describes a finished operation for the status bar.
func statusFor(msg opDoneMsg) string {
	if msg.err != nil {
		if msg.op == opAttach {
			return msg.err.Error()
		}
		// Shown by the error banner.
		return ""
	}
	switch msg.op {
	case opDelete:
		return "Chat deleted"
	case opClear:
		return "History cleared"
	default:
		return ""
	}
}


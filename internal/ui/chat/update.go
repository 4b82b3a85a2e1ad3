// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.help.Width = msg.Width
		m.refresh(true)
		return m, nil

	case SnapshotMsg:
		m.apply(msg.Snapshot)
		return m, nil

	case opDoneMsg:
		m.status = statusFor(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.refresh(false)
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		m.status = ""
		return m, retryCmd(m.ctrl)

	case key.Matches(msg, m.keys.NewChat):
		m.ctrl.NewChat()
		m.status = "Started a new chat"
		m.focusOn(focusInput)
		m.pull()
		return m, nil

	case key.Matches(msg, m.keys.ToggleList):
		if m.focus == focusList {
			m.focusOn(focusInput)
		} else {
			m.focusOn(focusList)
			m.cursor = m.activeIndex()
		}
		m.refresh(false)
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		switch {
		case m.snap.HasError():
			m.ctrl.ClearError()
			m.pull()
		case m.focus == focusList:
			m.focusOn(focusInput)
			m.refresh(false)
		default:
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusList {
		return m.handleListKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snap.Chats)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.refresh(false)

	case key.Matches(msg, m.keys.Down):
		if m.cursor < n-1 {
			m.cursor++
		}
		m.refresh(false)

	case key.Matches(msg, m.keys.Submit):
		if n == 0 {
			return m, nil
		}
		// A failed select is shown by the error banner.
		_ = m.ctrl.Select(m.snap.Chats[m.cursor].ID)
		m.focusOn(focusInput)
		m.pull()
		m.viewport.GotoBottom()

	case key.Matches(msg, m.keys.Delete):
		if n == 0 {
			return m, nil
		}
		return m, deleteCmd(m.ctrl, m.snap.Chats[m.cursor].ID)
	}
	return m, nil
}

// submit sends the input line or runs it as a command. Blank input does
// nothing.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.input.Reset()
	m.status = ""

	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		return m.runCommand(text)
	}
	m.viewport.GotoBottom()
	return m, sendCmd(m.ctrl, text)
}

func (m *Model) focusOn(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

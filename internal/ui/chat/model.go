// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatsync/internal/backend"
	chatctl "github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/ui/styles"
)

// Controller is the chat state the view drives.
type Controller interface {
	Snapshot() chatctl.Snapshot
	Fetch(ctx context.Context) error
	Retry(ctx context.Context) error
	Send(ctx context.Context, text string, files ...backend.File) error
	NewChat() string
	Select(id string) error
	Delete(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
	ClearError()
}

// Options tunes rendering.
type Options struct {
	// Markdown renders finished assistant replies with glamour.
	Markdown bool

	// ShowTimestamps adds the message time to each role label.
	ShowTimestamps bool
}

type focusArea int

const (
	focusInput focusArea = iota
	focusList
)

// maxInputLength matches the server's message limit.
const maxInputLength = 100_000

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctrl  Controller
	theme *styles.Theme
	opts  Options
	keys  KeyMap

	width  int
	height int

	// snap is the newest controller state received.
	snap chatctl.Snapshot

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model

	focus  focusArea
	cursor int

	// status is a transient line for results the snapshot does not carry.
	status string

	markdown *markdownRenderer
}

// New creates a chat view over ctrl.
func New(ctrl Controller, theme *styles.Theme, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.Placeholder = "Type a message... (/help for commands)"
	ti.CharLimit = maxInputLength
	ti.Focus()

	vp := viewport.New(80, 20)
	vp.SetContent("")

	// ASCII frames for terminal compatibility
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		ctrl:     ctrl,
		theme:    theme,
		opts:     opts,
		keys:     DefaultKeyMap(),
		snap:     ctrl.Snapshot(),
		viewport: vp,
		input:    ti,
		spinner:  sp,
		help:     help.New(),
	}
	if opts.Markdown {
		m.markdown = &markdownRenderer{style: theme.GlamourStyle()}
	}
	return m
}

// Init loads history and starts the cursor and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, fetchCmd(m.ctrl))
}

// Snapshot returns the state currently shown.
func (m Model) Snapshot() chatctl.Snapshot {
	return m.snap
}

// busy reports whether a network operation is in flight.
func (m Model) busy() bool {
	return m.snap.Loading || m.snap.Sending
}

// pull replaces the shown state with a fresh snapshot. Used after
// synchronous controller calls so the view does not wait for SnapshotMsg.
func (m *Model) pull() {
	follow := m.viewport.AtBottom()
	m.snap = m.ctrl.Snapshot()
	m.clampCursor()
	m.refresh(follow)
}

// apply shows s unless a newer snapshot is already shown.
func (m *Model) apply(s chatctl.Snapshot) bool {
	if s.Seq <= m.snap.Seq {
		return false
	}
	follow := m.viewport.AtBottom()
	m.snap = s
	m.clampCursor()
	m.refresh(follow)
	return true
}

func (m *Model) clampCursor() {
	n := len(m.snap.Chats)
	switch {
	case n == 0:
		m.cursor = 0
	case m.cursor >= n:
		m.cursor = n - 1
	case m.cursor < 0:
		m.cursor = 0
	}
}

// activeIndex returns the chat list index of the active chat, or 0.
func (m Model) activeIndex() int {
	for i, c := range m.snap.Chats {
		if c.ID == m.snap.ActiveChatID {
			return i
		}
	}
	return 0
}

// =============================================================================
// MARKDOWN
// =============================================================================

// markdownRenderer caches a glamour renderer per wrap width.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// render returns content as terminal markdown, or content unchanged when
// rendering fails.
func (r *markdownRenderer) render(content string, width int) string {
	if width < 20 {
		width = 20
	}
	if r.renderer == nil || r.width != width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		r.renderer, r.width = tr, width
	}
	out, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	chatctl "github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/ui/styles"
	"github.com/jeranaias/chatsync/internal/util"
)

const (
	chatListWidth  = 30
	bubbleMargin   = 6
	timestampStyle = "15:04"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the chat view.
// Layout: header + [error banner] + [chat list | transcript] + input + status + help.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	parts := []string{m.renderHeader()}
	if banner := m.renderErrorBanner(); banner != "" {
		parts = append(parts, banner)
	}

	body := m.viewport.View()
	if m.showList() {
		list := m.renderChatList(m.viewport.Height)
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, body)
	}
	parts = append(parts, body, m.renderInput(), m.renderStatusBar(), m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// refresh sizes the viewport to the space left by the fixed parts and
// re-renders the transcript. follow keeps the view pinned to the bottom.
func (m *Model) refresh(follow bool) {
	if m.width == 0 || m.height == 0 {
		return
	}

	fixed := lipgloss.Height(m.renderHeader()) +
		lipgloss.Height(m.renderInput()) +
		lipgloss.Height(m.renderStatusBar()) +
		lipgloss.Height(m.help.View(m.keys))
	if banner := m.renderErrorBanner(); banner != "" {
		fixed += lipgloss.Height(banner)
	}

	width := m.width
	if m.showList() {
		width -= chatListWidth
	}
	m.viewport.Width = max(width, 10)
	m.viewport.Height = max(m.height-fixed, 1)

	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

// showList reports whether the chat list sidebar is visible.
func (m Model) showList() bool {
	return m.focus == focusList || m.theme.GetLayoutMode() == styles.LayoutWide
}

// =============================================================================
// HEADER AND BANNER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("chatsync")

	var meta []string
	if m.snap.UserID != "" {
		meta = append(meta, m.snap.UserID)
	}
	if chat := m.activeChat(); chat != nil {
		meta = append(meta, chat.Title)
	} else if m.snap.ActiveChatID == "" {
		meta = append(meta, "no chat selected")
	}
	if !m.snap.LastFetch.IsZero() {
		meta = append(meta, "synced "+m.snap.LastFetch.Format(timestampStyle))
	}

	line := title
	if len(meta) > 0 {
		text := util.TruncateWidth(strings.Join(meta, " | "), max(m.width-14, 1))
		line += "  " + m.theme.HeaderMeta.Render(text)
	}
	return m.theme.Header.Width(m.width).Render(line)
}

// renderErrorBanner shows the visible error with what the user can do.
func (m Model) renderErrorBanner() string {
	if !m.snap.HasError() {
		return ""
	}
	err := m.snap.Err

	lines := []string{m.theme.ErrorTitle.Render(styles.StatusIndicators.Error + " " + m.snap.ErrorText())}
	var hints []string
	if err.ShouldRelogin() {
		hints = append(hints, "run `chatsync login` then Ctrl+R")
	} else if err.Retryable() {
		hints = append(hints, "Ctrl+R to retry")
	}
	hints = append(hints, "Esc to dismiss")
	lines = append(lines, m.theme.ErrorDetails.Render(strings.Join(hints, " | ")))

	return m.theme.ErrorBanner.Width(m.width).Render(strings.Join(lines, "\n"))
}

func (m Model) activeChat() *model.ChatMeta {
	for i := range m.snap.Chats {
		if m.snap.Chats[i].ID == m.snap.ActiveChatID {
			return &m.snap.Chats[i]
		}
	}
	return nil
}

// =============================================================================
// CHAT LIST
// =============================================================================

func (m Model) renderChatList(height int) string {
	inner := chatListWidth - 4
	var rows []string

	if len(m.snap.Chats) == 0 {
		rows = append(rows, m.theme.ChatMeta.Render("No chats yet"))
	}
	for i, c := range m.snap.Chats {
		title := util.TruncateWidth(c.Title, inner-2)
		var row string
		switch {
		case m.focus == focusList && i == m.cursor:
			row = m.theme.ChatItemSelected.Width(inner).Render(title)
		case c.ID == m.snap.ActiveChatID:
			row = m.theme.ChatItemActive.Width(inner).Render(title)
		default:
			row = m.theme.ChatItem.Width(inner).Render(title)
		}
		rows = append(rows, row)
		meta := fmt.Sprintf("%d msgs", c.MessageCount)
		if !c.UpdatedAt.IsZero() {
			meta += " | " + c.UpdatedAt.Format("Jan 2 15:04")
		}
		rows = append(rows, m.theme.ChatMeta.Render("  "+meta))
	}

	return m.theme.ChatList.
		Width(chatListWidth - 2).
		Height(max(height-2, 1)).
		MaxHeight(height).
		Render(strings.Join(rows, "\n"))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript draws the guarded display items.
func (m Model) renderTranscript(width int) string {
	items := m.snap.Items
	if len(items) == 0 {
		text := "No messages yet. Say hello!"
		if m.snap.Loading {
			text = "Loading chats..."
		}
		return m.theme.EmptyChat.Render(text)
	}

	bubbleWidth := max(width-bubbleMargin, 10)
	blocks := make([]string, 0, len(items))
	for _, it := range items {
		blocks = append(blocks, m.renderItem(it, bubbleWidth))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) renderItem(it chatctl.DisplayItem, width int) string {
	label := "You"
	bubble := m.theme.UserBubble
	if it.Role == model.RoleAssistant {
		label = "Assistant"
		bubble = m.theme.AssistantBubble
	}
	if m.opts.ShowTimestamps && !it.Timestamp.IsZero() {
		label += " " + m.theme.Timestamp.Render(it.Timestamp.Local().Format(timestampStyle))
	}

	var content string
	switch it.Kind {
	case chatctl.ItemThinking:
		content = m.theme.Thinking.Render(m.spinner.View() + " " + it.Text())
	case chatctl.ItemEmptyUser:
		content = m.theme.EmptyUser.Render(it.Text())
	default:
		content = it.Content
		if it.Role == model.RoleAssistant && !it.Streaming && m.markdown != nil {
			content = strings.TrimSpace(m.markdown.render(content, width-4))
		}
	}

	return m.theme.RoleLabel.Render(label) + "\n" + bubble.MaxWidth(width).Width(width-2).Render(content)
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.snap.Sending:
		left = m.spinner.View() + " sending"
	case m.snap.Loading:
		left = m.spinner.View() + " loading"
	case m.snap.HasError():
		left = styles.StatusIndicators.Error + " error"
	default:
		left = styles.StatusIndicators.Success + " ready"
	}

	right := fmt.Sprintf("%d chats | %d messages", len(m.snap.Chats), len(m.snap.Items))
	if m.status != "" {
		left += " | " + m.status
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

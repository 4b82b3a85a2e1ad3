// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history.go - Server-side chat history from the command line.
//
// Command: history
// Short:   List, show, delete, or clear chats
// Aliases: chats
//
// Examples:
//   chatsync history                       List recent chats
//   chatsync history --limit 5 --json      Five chats as JSON
//   chatsync history 3f2a                  Print the chat whose id starts with 3f2a
//   chatsync history delete 3f2a --confirm Delete one chat
//   chatsync history clear --confirm       Delete every chat

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/model"
	"github.com/jeranaias/chatsync/internal/util"
)

// DefaultHistoryLimit is how many chats `history` lists by default.
const DefaultHistoryLimit = 20

// HandleHistory dispatches the history subcommands.
func HandleHistory(ctx context.Context, args Args, w io.Writer) error {
	app, err := Bootstrap(args, false)
	if err != nil {
		return err
	}
	defer app.Close()

	ctrl := app.Controller
	if err := ctrl.Fetch(ctx); err != nil {
		return err
	}

	rest := args.Rest
	jsonMode := args.JSON || rest.BoolFlag("json")

	switch sub := rest.Positional(0); sub {
	case "", "list", "ls":
		chats := ctrl.Snapshot().Chats
		if limit := rest.FlagIntOrDefault("limit", DefaultHistoryLimit); limit > 0 && len(chats) > limit {
			chats = chats[:limit]
		}
		if jsonMode {
			return writeJSON(w, chatListJSON(chats))
		}
		if len(chats) == 0 {
			fmt.Fprintln(w, "No chats found.")
			return nil
		}
		fmt.Fprint(w, FormatChatList(chats, "", GetTerminalWidth()))
		return nil

	case "delete", "rm":
		id, err := resolveChatID(ctrl.Snapshot().Chats, rest.Positional(1))
		if err != nil {
			return err
		}
		if !rest.BoolFlag("confirm", "yes", "y") {
			return ErrConfirmRequired("deleting a chat", "chatsync history delete "+shortID(id)+" --confirm")
		}
		if err := ctrl.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Deleted chat %s\n", SuccessStyle.Render("[OK]"), shortID(id))
		return nil

	case "clear":
		if !rest.BoolFlag("confirm", "yes", "y") {
			return ErrConfirmRequired("clearing history", "chatsync history clear --confirm")
		}
		n := len(ctrl.Snapshot().Chats)
		if err := ctrl.ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Cleared %d chats\n", SuccessStyle.Render("[OK]"), n)
		return nil

	default:
		id, err := resolveChatID(ctrl.Snapshot().Chats, sub)
		if err != nil {
			return err
		}
		if err := ctrl.Select(id); err != nil {
			return err
		}
		snap := ctrl.Snapshot()
		if jsonMode {
			return writeJSON(w, transcriptJSON(id, snap.Items))
		}
		fmt.Fprint(w, FormatTranscript(snap.Items, app.Config.UI.ShowTimestamps))
		return nil
	}
}

// resolveChatID finds the chat whose id equals or starts with prefix.
func resolveChatID(chats []model.ChatMeta, prefix string) (string, error) {
	if prefix == "" {
		return "", ErrMissingArgument("chat id", "chatsync history 3f2a")
	}
	var match string
	for _, c := range chats {
		if c.ID == prefix {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, prefix) {
			if match != "" {
				return "", &ValidationError{Field: "chat id", Value: prefix, Reason: "matches more than one chat"}
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", &NotFoundError{Resource: "chat", ID: prefix}
	}
	return match, nil
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatChatList formats chats as a numbered table. The active chat is
// marked with "*". width bounds the title column.
func FormatChatList(chats []model.ChatMeta, activeID string, width int) string {
	const fixed = 4 + 10 + 17 + 6 + 4
	titleWidth := width - fixed
	if titleWidth < 16 {
		titleWidth = 16
	}

	var sb strings.Builder
	sb.WriteString(DimStyle.Render(fmt.Sprintf("%-4s %-10s %-17s %-6s %s", "#", "ID", "Updated", "Msgs", "Title")))
	sb.WriteString("\n")
	for i, c := range chats {
		num := fmt.Sprintf("%d", i+1)
		if c.ID == activeID {
			num += "*"
		}
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		title := c.Title
		if title == "" {
			title = c.Preview
		}
		fmt.Fprintf(&sb, "%-4s %-10s %-17s %-6d %s\n",
			num, shortID(c.ID), updated, c.MessageCount,
			util.TruncateWidth(util.CollapseSpaces(title), titleWidth))
	}
	return sb.String()
}

// FormatTranscript renders display items as plain text turns.
func FormatTranscript(items []chat.DisplayItem, timestamps bool) string {
	if len(items) == 0 {
		return "(no messages)\n"
	}
	var sb strings.Builder
	for _, it := range items {
		label := "you"
		style := UserPromptStyle
		if it.Role == model.RoleAssistant {
			label, style = "assistant", AssistantStyle
		}
		sb.WriteString(style.Render(label))
		if timestamps && !it.Timestamp.IsZero() {
			sb.WriteString(" " + DimStyle.Render(it.Timestamp.Local().Format(time.DateTime)))
		}
		text := it.Text()
		if ColorsEnabled() {
			text = HighlightCodeBlocks(text)
		}
		sb.WriteString("\n" + text + "\n\n")
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// =============================================================================
// JSON OUTPUT
// =============================================================================

type chatJSON struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview,omitempty"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func chatListJSON(chats []model.ChatMeta) []chatJSON {
	out := make([]chatJSON, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatJSON{
			ID:           c.ID,
			Title:        c.Title,
			Preview:      c.Preview,
			MessageCount: c.MessageCount,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return out
}

func transcriptJSON(chatID string, items []chat.DisplayItem) map[string]any {
	msgs := make([]messageJSON, 0, len(items))
	for _, it := range items {
		msgs = append(msgs, messageJSON{ID: it.ID, Role: string(it.Role), Content: it.Text(), Timestamp: it.Timestamp})
	}
	return map[string]any{"chat_id": chatID, "messages": msgs}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based chat for plain terminals and pipes.
//
// Command: chat
// Short:   Chat without the full-screen UI
//
// Examples:
//   chatsync chat                    Start a new chat
//   chatsync chat --resume           Continue the most recent chat
//   echo "hello" | chatsync chat     Send one message per input line
//
// Interactive Commands (during chat):
//   /help                Show available commands
//   /list                List chats
//   /open N              Switch to chat N from /list
//   /new                 Start a new chat
//   /delete              Delete the current chat
//   /attach PATH MSG     Send MSG with a file attached
//   /retry               Reload history from the server
//   /quit                Exit chat

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/chat"
	"github.com/jeranaias/chatsync/internal/config"
	"github.com/jeranaias/chatsync/internal/model"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads saved input history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(configDir, "chat_history")}

	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// lineReader is satisfied by ChatCLI and by plain stdin when piped.
type lineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// pipeReader reads lines from a non-terminal stdin.
type pipeReader struct {
	scanner *bufio.Scanner
}

func newPipeReader(r io.Reader) *pipeReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &pipeReader{scanner: sc}
}

func (p *pipeReader) ReadInput(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

func (p *pipeReader) Close() {}

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter prints the growing assistant reply of one send. Snapshots
// may arrive out of order, so only content longer than what was already
// printed is written.
type streamPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	baseline map[string]struct{}
	id       string
	printed  int
	active   bool
}

func newStreamPrinter(w io.Writer) *streamPrinter {
	return &streamPrinter{w: w}
}

// Begin starts tracking a send. Items already visible are ignored.
func (p *streamPrinter) Begin(snap chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseline = make(map[string]struct{}, len(snap.Items))
	for _, it := range snap.Items {
		p.baseline[it.ID] = struct{}{}
	}
	p.id = ""
	p.printed = 0
	p.active = true
}

// Observe prints whatever the snapshot adds to the reply.
func (p *streamPrinter) Observe(snap chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		p.writeLocked(snap)
	}
}

// End flushes the remainder of the reply and stops tracking.
func (p *streamPrinter) End(snap chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.writeLocked(snap)
	if p.printed > 0 {
		fmt.Fprintln(p.w)
	}
	p.active = false
}

func (p *streamPrinter) writeLocked(snap chat.Snapshot) {
	for _, it := range snap.Items {
		if it.Role != model.RoleAssistant {
			continue
		}
		if _, old := p.baseline[it.ID]; old {
			continue
		}
		if p.id == "" {
			p.id = it.ID
			fmt.Fprint(p.w, AssistantStyle.Render("assistant")+" ")
		}
		if it.ID != p.id || it.Kind != chat.ItemMessage {
			continue
		}
		if len(it.Content) > p.printed {
			fmt.Fprint(p.w, it.Content[p.printed:])
			p.printed = len(it.Content)
		}
	}
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// chatSession holds the state of one line chat.
type chatSession struct {
	ctrl    *chat.Controller
	out     io.Writer
	printer *streamPrinter
	listed  []model.ChatMeta
}

// HandleChat runs the line-based chat.
func HandleChat(ctx context.Context, args Args) error {
	app, err := Bootstrap(args, false)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.WatchSession(ctx)

	interactive := IsTTY()
	out := os.Stdout
	s := &chatSession{ctrl: app.Controller, out: out, printer: newStreamPrinter(out)}
	app.Controller.OnChange(s.printer.Observe)

	if err := app.Controller.Fetch(ctx); err != nil {
		var be *backend.Error
		if errors.As(err, &be) && be.ShouldRelogin() {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("[!]"), backend.UserMessage(err))
	}

	if args.Rest.BoolFlag("resume") {
		if chats := app.Controller.Snapshot().Chats; len(chats) > 0 {
			_ = app.Controller.Select(chats[0].ID)
			s.printTranscript()
		}
	}

	var input lineReader
	if interactive {
		input = NewChatCLI()
		s.printWelcome()
	} else {
		input = newPipeReader(os.Stdin)
	}
	defer input.Close()

	prompt := ""
	if interactive {
		prompt = UserPromptStyle.Render("you") + " > "
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := input.ReadInput(prompt)
		if err != nil {
			// Ctrl+C, Ctrl+D, or end of piped input.
			if interactive {
				fmt.Fprintln(out)
			}
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !s.runCommand(ctx, line) {
				return nil
			}
			continue
		}
		if err := s.send(ctx, line); err != nil && !interactive {
			return err
		}
	}
}

func (s *chatSession) printWelcome() {
	fmt.Fprintln(s.out, TitleStyle.Render("chatsync"))
	snap := s.ctrl.Snapshot()
	if snap.UserID != "" {
		fmt.Fprintf(s.out, "%s %s\n", LabelStyle.Render("Signed in as"), ValueStyle.Render(snap.UserID))
	}
	fmt.Fprintf(s.out, "%s %d\n", LabelStyle.Render("Chats"), len(snap.Chats))
	fmt.Fprintln(s.out, DimStyle.Render("Type a message, or /help for commands."))
	fmt.Fprintln(s.out)
}

// send posts one message, printing the reply as it streams.
func (s *chatSession) send(ctx context.Context, text string, files ...backend.File) error {
	s.printer.Begin(s.ctrl.Snapshot())
	err := s.ctrl.Send(ctx, text, files...)
	s.printer.End(s.ctrl.Snapshot())
	if err != nil {
		s.printError(err)
		return err
	}
	fmt.Fprintln(s.out)
	return nil
}

func (s *chatSession) printError(err error) {
	var be *backend.Error
	if errors.As(err, &be) {
		fmt.Fprintf(s.out, "%s %s\n", ErrorStyle.Render("[X]"), be.UserMessage())
		if be.ShouldRelogin() {
			fmt.Fprintf(s.out, "    Run %s to sign in again.\n", CmdStyle.Render("chatsync login"))
		} else if be.Retryable() {
			fmt.Fprintf(s.out, "    Try again, or %s to reload.\n", CmdStyle.Render("/retry"))
		}
		return
	}
	fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[X]"), err)
}

// printTranscript writes the active chat's messages.
func (s *chatSession) printTranscript() {
	fmt.Fprint(s.out, FormatTranscript(s.ctrl.Snapshot().Items, false))
}

// runCommand handles a slash command and reports whether to keep going.
func (s *chatSession) runCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	rest := fields[1:]

	switch name {
	case "/quit", "/exit", "/q":
		return false

	case "/help", "/h":
		fmt.Fprintln(s.out, `Commands:
  /list              List chats
  /open N            Switch to chat N from /list
  /new               Start a new chat
  /delete            Delete the current chat
  /attach PATH MSG   Send MSG with a file attached
  /retry             Reload history from the server
  /quit              Exit`)

	case "/list", "/ls":
		s.listed = s.ctrl.Snapshot().Chats
		if len(s.listed) == 0 {
			fmt.Fprintln(s.out, DimStyle.Render("No chats yet."))
			break
		}
		fmt.Fprint(s.out, FormatChatList(s.listed, s.ctrl.ActiveChatID(), GetTerminalWidth()))

	case "/open":
		n, err := strconv.Atoi(strings.Join(rest, ""))
		if err != nil || n < 1 || n > len(s.listed) {
			fmt.Fprintln(s.out, WarningStyle.Render("Usage: /open N (run /list first)"))
			break
		}
		if err := s.ctrl.Select(s.listed[n-1].ID); err != nil {
			s.printError(err)
			break
		}
		s.printTranscript()

	case "/new":
		id := s.ctrl.NewChat()
		fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("[OK]"), "New chat "+shortID(id))

	case "/delete":
		id := s.ctrl.ActiveChatID()
		if id == "" {
			fmt.Fprintln(s.out, DimStyle.Render("No chat selected."))
			break
		}
		if err := s.ctrl.Delete(ctx, id); err != nil {
			s.printError(err)
			break
		}
		fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("[OK]"), "Chat deleted")

	case "/attach":
		if len(rest) < 2 {
			fmt.Fprintln(s.out, WarningStyle.Render("Usage: /attach PATH MESSAGE"))
			break
		}
		f, err := os.Open(rest[0])
		if err != nil {
			fmt.Fprintf(s.out, "%s %v\n", ErrorStyle.Render("[X]"), err)
			break
		}
		_ = s.send(ctx, strings.Join(rest[1:], " "), backend.File{Name: filepath.Base(rest[0]), Reader: f})
		f.Close()

	case "/retry":
		if err := s.ctrl.Retry(ctx); err != nil {
			s.printError(err)
			break
		}
		fmt.Fprintf(s.out, "%s %s\n", SuccessStyle.Render("[OK]"), "History reloaded")

	default:
		fmt.Fprintf(s.out, "%s %s\n", WarningStyle.Render("[!]"), "Unknown command "+name+" (try /help)")
	}
	return true
}

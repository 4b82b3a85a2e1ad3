// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command parsing and dispatch for chatsync.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdHistory
	CmdLogin
	CmdLogout
	CmdServe
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdHistory:
		return "history"
	case CmdLogin:
		return "login"
	case CmdLogout:
		return "logout"
	case CmdServe:
		return "serve"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "tui"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Verbose    bool
	JSON       bool

	// Rest holds everything after the command name.
	Rest *ArgParser
}

const usageText = `chatsync - terminal chat client with server-synced history

Usage:
  chatsync [tui]                      Start the full-screen chat (default)
  chatsync chat                       Line-based chat for plain terminals
  chatsync history [N|ID]             List chats, or print one transcript
    --limit N                         Show at most N chats (default 20)
  chatsync history delete ID --confirm
  chatsync history clear --confirm    Delete every chat on the server
  chatsync login --token T --user U   Store credentials for the server
  chatsync logout                     Forget stored credentials
  chatsync serve [--addr HOST:PORT]   Run the chat backend
  chatsync version                    Show version information

Global flags:
  --config PATH                       Config file (default ~/.chatsync/config.toml)
  -v, --verbose                       Debug logging
  --json                              Machine-readable output where supported

Environment:
  CHATSYNC_CLIENT_BASE_URL, CHATSYNC_CLIENT_TOKEN, CHATSYNC_CLIENT_USER_ID,
  CHATSYNC_CLIENT_TOKEN_PASSPHRASE (encrypts the token file),
  CHATSYNC_SERVER_TOKENS, CHATSYNC_STORAGE_DSN, CHATSYNC_LLM_PROVIDER, ...

Version: %s
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "chatsync version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name).
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}

	if len(remaining) == 0 {
		args.Rest = NewArgParser(nil)
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	args.Rest = NewArgParser(remaining[1:])

	switch name {
	case "tui":
		return CmdTUI, args, nil
	case "chat", "repl":
		return CmdChat, args, nil
	case "history", "chats":
		return CmdHistory, args, nil
	case "login":
		return CmdLogin, args, nil
	case "logout":
		return CmdLogout, args, nil
	case "serve", "server":
		return CmdServe, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help", "-h", "--help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, &ValidationError{
			Field:   "command",
			Value:   name,
			Reason:  "unknown command",
			Example: "chatsync help",
		}
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		remaining []string
		args      Args
	)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch {
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--json":
			args.JSON = true
		case arg == "--config":
			if i+1 >= len(argv) {
				return nil, args, ErrMissingArgument("--config", "chatsync --config ~/.chatsync/config.toml")
			}
			i++
			args.ConfigPath = argv[i]
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}

// Run executes cmd.
func Run(ctx context.Context, cmd Command, args Args, stdout io.Writer) error {
	switch cmd {
	case CmdTUI:
		return HandleTUI(ctx, args)
	case CmdChat:
		return HandleChat(ctx, args)
	case CmdHistory:
		return HandleHistory(ctx, args, stdout)
	case CmdLogin:
		return HandleLogin(args, stdout)
	case CmdLogout:
		return HandleLogout(args, stdout)
	case CmdServe:
		return HandleServe(ctx, args)
	case CmdVersion:
		PrintVersion(stdout)
		return nil
	default:
		PrintUsage(stdout)
		return nil
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth.go - Storing and forgetting backend credentials.
//
// Command: login
// Short:   Save a bearer token for the backend
//
// Examples:
//   chatsync login --token T --user alice   Save and verify credentials
//   chatsync login --no-verify --token T    Save without contacting the server
//   chatsync login                          Prompt for the token
//
// Command: logout
// Short:   Remove the saved token

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/chatsync/internal/backend"
	"github.com/jeranaias/chatsync/internal/session"
)

// loginVerifyTimeout bounds the history request used to check a new token.
const loginVerifyTimeout = 15 * time.Second

// HandleLogin saves credentials to the token file. Unless --no-verify is
// given the token is checked against the server first, and a rejected
// token is not saved.
func HandleLogin(args Args, w io.Writer) error {
	cfg, closer, err := loadConfig(args, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	rest := args.Rest
	token := rest.Flag("token", "t")
	userID := rest.Flag("user", "u")

	if token == "" {
		if !IsTTY() {
			return ErrMissingArgument("--token", "chatsync login --token T --user alice")
		}
		fmt.Fprint(w, "Token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return ErrMissingArgument("--token", "chatsync login --token T --user alice")
	}

	sess := session.New(token, userID)
	if !rest.BoolFlag("no-verify") {
		client := backend.New(backend.Options{
			BaseURL:        cfg.Client.BaseURL,
			RequestTimeout: cfg.Client.RequestTimeout,
			UserAgent:      "chatsync/" + Version,
		}, sess)
		ctx, cancel := context.WithTimeout(context.Background(), loginVerifyTimeout)
		defer cancel()
		if _, err := client.FetchHistory(ctx); err != nil {
			return err
		}
	}

	store := tokenStore(cfg)
	if err := session.Login(store, sess, token, sess.UserID()); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(w, map[string]any{
			"success":     true,
			"user_id":     sess.UserID(),
			"fingerprint": sess.Fingerprint(),
			"token_file":  store.Path(),
		})
	}
	fmt.Fprintf(w, "%s Signed in", SuccessStyle.Render("[OK]"))
	if id := sess.UserID(); id != "" {
		fmt.Fprintf(w, " as %s", id)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Token"), DimStyle.Render(sess.Fingerprint()))
	fmt.Fprintf(w, "%s %s\n", LabelStyle.Render("Saved to"), DimStyle.Render(store.Path()))
	return nil
}

// HandleLogout removes the token file. Running chat windows sign out
// through their session watchers.
func HandleLogout(args Args, w io.Writer) error {
	cfg, closer, err := loadConfig(args, false)
	if err != nil {
		return err
	}
	defer closer.Close()

	store := tokenStore(cfg)
	sess, _ := session.Restore(store)
	if err := session.Logout(store, sess); err != nil {
		return err
	}

	if args.JSON {
		return writeJSON(w, map[string]any{"success": true})
	}
	fmt.Fprintf(w, "%s Signed out\n", SuccessStyle.Render("[OK]"))
	if cfg.Client.Token != "" {
		fmt.Fprintf(w, "%s CHATSYNC_CLIENT_TOKEN is still set in the environment\n", WarningStyle.Render("[!]"))
	}
	return nil
}

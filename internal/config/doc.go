// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for chatsync.
//
// # Configuration Precedence
//
// Values are resolved from (highest first):
//   - CHATSYNC_* environment variables, e.g. CHATSYNC_CLIENT_BASE_URL
//   - a .env file in the working directory
//   - ~/.chatsync/config.toml, or the file passed with --config
//   - built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	closer, _ := cfg.Log.Setup(false)
//	defer closer.Close()
package config

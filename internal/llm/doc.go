// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm generates assistant replies for the chat server.
//
// A Generator receives the chat history ending with the new user message
// and streams the reply through a callback. Providers:
//
//   - echo: repeats the prompt back; needs no network, used in tests and demos
//   - openai: any OpenAI-compatible endpoint through langchaingo
//   - ollama: a local Ollama server through langchaingo
package llm

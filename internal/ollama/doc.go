// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client covers the four endpoints the session engine needs: the
// root health check, /api/tags, /api/generate and /api/chat. Each call
// makes exactly one round trip; retrying while the service boots is the
// job of the lifecycle coordinator.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Stream: iterator over a streaming generate or chat response
//   - ClientError: typed failure (not running, timeout, model not found,
//     invalid response, connection, cancelled)
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: url})
//	stream, err := client.ChatStream(ctx, ollama.ChatRequest{
//	    Model:    "llama3:8b",
//	    Messages: []ollama.Message{ollama.NewUserMessage("Hello")},
//	})
//	if err != nil {
//	    return err
//	}
//	text, _, err := stream.Collect(func(c ollama.StreamChunk) {
//	    fmt.Print(c.Content)
//	})
//
// Cancelling ctx aborts the stream; the error satisfies IsCancelled.
package ollama

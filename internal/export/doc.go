// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders archived chats as Markdown, JSON or HTML.
//
// # Usage
//
//	exporter, err := export.ForFormat("html", export.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	path, err := export.ExportToFile(chat, exporter, &export.Options{OutputDir: "."})
//
// Markdown output is also what 'termsage history show' renders in the
// terminal.
package export

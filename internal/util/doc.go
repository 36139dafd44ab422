// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the termsage packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used for the
//     config snapshot
//   - TruncateWidth, PadRight, StringWidth: display-width aware layout
//     for model tables and archive listings
//   - SingleLine: whitespace folding for one-line previews
package util

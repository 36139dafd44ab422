// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect inspects the host so termsage can tell whether a model
// is likely to fit in memory before the user waits on a slow load.
//
// Estimates assume Q4_K_M quantization, the Ollama default, at roughly
// 0.56 bytes per parameter plus a fixed overhead for the KV cache.
package detect

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured file logger used by termsage.
//
// Components receive a *zap.Logger explicitly and name it after
// themselves; there is no package-level logger.
package logging

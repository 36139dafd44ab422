// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and persistence for termsage.
//
// Supports TOML, JSON and YAML configuration files, with sensible defaults,
// environment variable overrides, and validation. Keys missing from a file
// keep their default values, so a file may set temperature to 0.0 without
// that being mistaken for "unset".
//
// # Key Types
//
//   - Config: session defaults plus service, logging and archive settings
//   - LoadError: fatal startup error for unreadable or invalid files
//   - ValidateErrors: every validation problem found in one pass
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TERMSAGE_*)
//   - ~/.termsage/config.toml, config.json or config.yaml (first found)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err // *config.LoadError
//	}
//	s := session.New(cfg.Snapshot(), cache)
//	...
//	err = config.SaveSnapshot(path, cfg, s.Snapshot())
package config

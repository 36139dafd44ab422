// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives finished chat sub-sessions for termsage.
//
// Chats are kept in a SQLite database (pure Go driver) so they can be
// listed, searched and exported after the session that produced them
// has ended. Only completed exchanges are ever archived.
//
// # Usage
//
//	archive, err := storage.OpenArchive(filepath.Join(home, ".termsage", "chats.db"))
//	if err != nil {
//		return err
//	}
//	defer archive.Close()
//
//	id, err := archive.SaveChat(ctx, "llama3:8b", transcript)
//	recent, err := archive.RecentChats(ctx, 10)
//	chat, err := archive.LoadChat(ctx, id)
package storage

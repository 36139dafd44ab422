// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Browsing the chat archive from the command line.

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/termsage/internal/export"
	"github.com/jeranaias/termsage/internal/storage"
	"github.com/jeranaias/termsage/internal/util"
)

func newHistoryCommand(flags *Flags) *cobra.Command {
	var limit int

	history := &cobra.Command{
		Use:   "history",
		Short: "List archived chats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, flags, func(ctx context.Context, app *App) error {
				chats, err := app.Archive.RecentChats(ctx, limit)
				if err != nil {
					return NewCommandError("history", "could not list chats", err)
				}
				printSummaries(app.Out, chats, "No archived chats yet.")
				return nil
			})
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of chats to list")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived chat as markdown",
		Long:  "Show an archived chat. The id may be abbreviated to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, flags, func(ctx context.Context, app *App) error {
				chat, err := app.Archive.LoadChat(ctx, args[0])
				if err != nil {
					return NewCommandError("history show", "could not load chat", err)
				}
				md, err := export.NewMarkdownExporter(&export.Options{
					IncludeMetadata:   true,
					IncludeTimestamps: true,
				}).Export(chat)
				if err != nil {
					return NewCommandError("history show", "could not render chat", err)
				}
				renderer := NewRenderer(IsStdoutTTY(), GetTerminalWidth())
				fmt.Fprint(app.Out, renderer.Render(string(md)))
				return nil
			})
		},
	}

	search := &cobra.Command{
		Use:   "search <text...>",
		Short: "Find chats whose title or messages contain text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, flags, func(ctx context.Context, app *App) error {
				chats, err := app.Archive.SearchChats(ctx, strings.Join(args, " "), limit)
				if err != nil {
					return NewCommandError("history search", "search failed", err)
				}
				printSummaries(app.Out, chats, "No matching chats.")
				return nil
			})
		},
	}
	search.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of chats to list")

	remove := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an archived chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, flags, func(ctx context.Context, app *App) error {
				chat, err := app.Archive.LoadChat(ctx, args[0])
				if err != nil {
					return NewCommandError("history delete", "could not load chat", err)
				}
				if err := app.Archive.DeleteChat(ctx, chat.ID); err != nil {
					return NewCommandError("history delete", "could not delete chat", err)
				}
				fmt.Fprintf(app.Out, "Deleted chat %s.\n", shortID(chat.ID))
				return nil
			})
		},
	}

	var format, outputDir, theme string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write an archived chat to a file",
		Long: fmt.Sprintf("Write an archived chat to a file in one of: %s.\n"+
			"The file name is derived from the chat title and start time.", strings.Join(export.Formats, ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = outputDir
			opts.Theme = theme
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return NewCommandError("history export", "bad format", err)
			}
			return withArchive(cmd, flags, func(ctx context.Context, app *App) error {
				chat, err := app.Archive.LoadChat(ctx, args[0])
				if err != nil {
					return NewCommandError("history export", "could not load chat", err)
				}
				path, err := export.ExportToFile(chat, exporter, opts)
				if err != nil {
					return NewCommandError("history export", "could not write file", err)
				}
				app.Logger.Info("chat exported", zap.String("id", chat.ID), zap.String("path", path))
				fmt.Fprintf(app.Out, "Exported chat %s to %s\n", shortID(chat.ID), path)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	exportCmd.Flags().StringVar(&theme, "theme", "dark", "HTML theme (light or dark)")

	history.AddCommand(show, search, remove, exportCmd)
	return history
}

// withArchive is withApp for commands that need the chat archive.
func withArchive(cmd *cobra.Command, flags *Flags, run func(context.Context, *App) error) error {
	return withApp(cmd, flags, func(ctx context.Context, app *App) error {
		if app.Archive == nil {
			return NewCommandError(cmd.CommandPath(), "chat history is disabled", nil)
		}
		return run(ctx, app)
	})
}

func printSummaries(w io.Writer, chats []storage.ChatSummary, empty string) {
	if len(chats) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, c := range chats {
		fmt.Fprintf(w, "%s  %s  %s %3d turns  %s\n",
			HighlightStyle.Render(shortID(c.ID)),
			DimStyle.Render(util.PadRight(humanize.Time(c.StartedAt), 14)),
			util.PadRight(util.TruncateWidth(c.Model, 16), 16),
			c.Turns,
			util.TruncateWidth(c.Title, 48))
	}
}

// shortID abbreviates a chat id for listings; LoadChat accepts it back.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

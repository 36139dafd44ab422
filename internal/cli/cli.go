// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Root command and non-interactive subcommands for termsage.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/termsage/internal/commands"
	"github.com/jeranaias/termsage/internal/session"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the termsage command tree. Flags are bound to a
// fresh Flags value, so each tree is independent.
func NewRootCommand() *cobra.Command {
	flags := &Flags{}

	root := &cobra.Command{
		Use:   "termsage",
		Short: "Interactive terminal session for local Ollama models",
		Long: `termsage is an interactive shell for models served by Ollama.

It starts Ollama when it is not running, lists and selects models, and
offers one-shot generation, multi-turn chat and a settings menu.
Chats are archived locally and can be browsed with 'termsage history'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, runShell)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.ConfigPath, "config", "c", "", "Config file (default ~/.termsage/config.toml)")
	pf.StringVarP(&flags.Model, "model", "m", "", "Active model for this run")
	pf.StringVar(&flags.URL, "url", "", "Ollama base URL")
	pf.BoolVar(&flags.NoAutoStart, "no-autostart", false, "Do not start Ollama automatically")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newGenerateCommand(flags),
		newListCommand(flags),
		newHistoryCommand(flags),
		newStatusCommand(flags),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree with os.Args. SIGTERM cancels the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// withApp builds the App for one command invocation and closes it after.
func withApp(cmd *cobra.Command, flags *Flags, run func(context.Context, *App) error) error {
	app, err := NewApp(*flags, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()
	return run(cmd.Context(), app)
}

// =============================================================================
// INTERACTIVE SHELL
// =============================================================================

func runShell(ctx context.Context, app *App) error {
	historyFile, err := app.Config.HistoryPath()
	if err != nil {
		historyFile = ""
	}

	var sh *Shell
	completer := commands.NewCompleter(commands.NewRegistry())
	complete := completer.WordCompleter(
		func() context.Context { return ctx },
		func() session.Session { return sh.Session() },
	)
	editor := NewLineEditor(historyFile, complete)
	defer editor.Close()

	sh = NewShell(ShellConfig{
		In:             editor,
		Out:            app.Out,
		Session:        app.NewSession(),
		NewDispatcher:  app.NewDispatcher,
		Readiness:      app.Coordinator,
		StartupTimeout: app.Config.Service.StartupTimeout(),
		OnAutoStart:    app.Coordinator.SetAutoStart,
		Save:           app.SaveSession,
		Renderer:       NewRenderer(IsStdoutTTY(), GetTerminalWidth()),
		Logger:         app.Logger,
	})
	return sh.Run(ctx)
}

// =============================================================================
// GENERATE / LIST
// =============================================================================

func newGenerateCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt...>",
		Short: "Generate one response and exit",
		Example: `  termsage generate "Explain goroutines in one paragraph"
  termsage -m llama3 generate write a haiku about tea`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				line := "generate " + strings.Join(args, " ")
				res, err := dispatchOnce(ctx, app, line)
				if err != nil {
					return err
				}
				renderer := NewRenderer(IsStdoutTTY(), GetTerminalWidth())
				fmt.Fprint(app.Out, renderer.Render(res.Message))
				return nil
			})
		},
	}
}

func newListCommand(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				res, err := dispatchOnce(ctx, app, "list")
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Out, res.Message)
				return nil
			})
		},
	}
}

// dispatchOnce runs a single shell command outside the interactive loop.
// Ctrl+C cancels it.
func dispatchOnce(ctx context.Context, app *App, line string) (commands.Result, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, _ := app.NewDispatcher(nil).Dispatch(ctx, line, app.NewSession())
	name := strings.Fields(line)[0]
	switch res.Kind {
	case commands.ResultCancelled:
		return res, NewCommandError(name, "cancelled", nil)
	case commands.ResultError:
		return res, NewCommandError(name, "request failed", res.Err)
	}
	return res, nil
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			PrintVersion(cmd.OutOrStdout())
		},
	}
}

// PrintVersion prints version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "termsage version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

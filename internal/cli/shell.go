// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// shell.go - The interactive read-dispatch-print loop.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/termsage/internal/commands"
	"github.com/jeranaias/termsage/internal/session"
)

// =============================================================================
// SHELL CONFIGURATION
// =============================================================================

// ShellConfig wires a Shell to its collaborators.
type ShellConfig struct {
	In  LineReader
	Out io.Writer

	Session session.Session

	// NewDispatcher builds the dispatcher; onChunk prints streamed text.
	NewDispatcher func(onChunk func(string)) *commands.Dispatcher

	// Readiness is checked once at startup (nil skips the check).
	Readiness      commands.Readiness
	StartupTimeout time.Duration

	// OnAutoStart is told the session's auto-start flag after every command.
	OnAutoStart func(enabled bool)

	// Save persists the session on exit (nil skips).
	Save func(session.Session) error

	Renderer *Renderer
	Logger   *zap.Logger

	// Interrupt derives the per-command context. The default cancels it
	// on SIGINT.
	Interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

// =============================================================================
// SHELL
// =============================================================================

// Shell runs one interactive session. Input is processed one line at a
// time, each to completion before the next prompt.
type Shell struct {
	in             LineReader
	out            io.Writer
	session        session.Session
	dispatcher     *commands.Dispatcher
	readiness      commands.Readiness
	startupTimeout time.Duration
	onAutoStart    func(bool)
	save           func(session.Session) error
	renderer       *Renderer
	logger         *zap.Logger
	interrupt      func(context.Context) (context.Context, context.CancelFunc)

	// streaming is set once chunk text has been written for the current
	// command, so the line can be terminated afterwards.
	streaming bool
}

// NewShell creates a shell from cfg.
func NewShell(cfg ShellConfig) *Shell {
	sh := &Shell{
		in:             cfg.In,
		out:            cfg.Out,
		session:        cfg.Session,
		readiness:      cfg.Readiness,
		startupTimeout: cfg.StartupTimeout,
		onAutoStart:    cfg.OnAutoStart,
		save:           cfg.Save,
		renderer:       cfg.Renderer,
		logger:         cfg.Logger,
		interrupt:      cfg.Interrupt,
	}
	if sh.out == nil {
		sh.out = os.Stdout
	}
	if sh.renderer == nil {
		sh.renderer = NewRenderer(false, DefaultTerminalWidth)
	}
	if sh.logger == nil {
		sh.logger = zap.NewNop()
	}
	if sh.interrupt == nil {
		sh.interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		}
	}
	if sh.startupTimeout <= 0 {
		sh.startupTimeout = 30 * time.Second
	}
	sh.dispatcher = cfg.NewDispatcher(sh.writeChunk)
	return sh
}

// Session returns the current session.
func (sh *Shell) Session() session.Session {
	return sh.session
}

// Dispatcher returns the shell's dispatcher.
func (sh *Shell) Dispatcher() *commands.Dispatcher {
	return sh.dispatcher
}

// Run prints the welcome banner and processes input until quit or EOF.
// Ctrl+C at the prompt is not an exit. The session is saved on the way
// out; a save failure is reported but not returned.
func (sh *Shell) Run(ctx context.Context) error {
	sh.welcome()
	sh.startup(ctx)

	var runErr error
	for ctx.Err() == nil {
		line, err := sh.in.Prompt(PromptFor(sh.session))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(sh.out, WarningStyle.Render("Operation cancelled."))
				continue
			}
			if !errors.Is(err, io.EOF) {
				runErr = fmt.Errorf("failed to read input: %w", err)
			}
			sh.leaveChat(ctx)
			fmt.Fprintln(sh.out, "Exiting TermSage.")
			break
		}

		if strings.TrimSpace(line) != "" {
			sh.in.AppendHistory(line)
		}
		if sh.Execute(ctx, line) {
			break
		}
	}

	if sh.save != nil {
		if err := sh.save(sh.session); err != nil {
			fmt.Fprintf(sh.out, "%s could not save settings: %v\n", WarningStyle.Render("Warning:"), err)
		}
	}
	return runErr
}

// Execute dispatches one line and prints the outcome. It reports whether
// the shell should exit.
func (sh *Shell) Execute(ctx context.Context, line string) bool {
	cmdCtx, cancel := sh.interrupt(ctx)
	res, next := sh.dispatcher.Dispatch(cmdCtx, line, sh.session)
	cancel()

	sh.endStream()
	sh.session = next
	if sh.onAutoStart != nil {
		sh.onAutoStart(next.AutoStart())
	}

	sh.show(res)

	if res.SideEffect != nil {
		sh.logger.Debug("side effect",
			zap.Stringer("event", res.SideEffect.Event),
			zap.Stringer("from", res.SideEffect.From),
			zap.Stringer("to", res.SideEffect.To))
		switch res.SideEffect.Event {
		case commands.EventClear:
			ClearScreen(sh.out)
		case commands.EventQuit:
			return true
		}
	}
	return false
}

// =============================================================================
// OUTPUT
// =============================================================================

func (sh *Shell) writeChunk(text string) {
	if text == "" {
		return
	}
	sh.streaming = true
	fmt.Fprint(sh.out, text)
}

func (sh *Shell) endStream() {
	if sh.streaming {
		fmt.Fprintln(sh.out)
		sh.streaming = false
	}
}

func (sh *Shell) show(res commands.Result) {
	switch res.Kind {
	case commands.ResultCancelled:
		fmt.Fprintln(sh.out, WarningStyle.Render(res.Message))
	case commands.ResultError:
		fmt.Fprintf(sh.out, "%s %s\n", ErrorStyle.Render("Error:"), res.Message)
	default:
		if res.Streamed || res.Message == "" {
			return
		}
		if res.Command == commands.CmdGenerate {
			fmt.Fprint(sh.out, sh.renderer.Render(res.Message))
			return
		}
		fmt.Fprintln(sh.out, res.Message)
	}
}

func (sh *Shell) welcome() {
	fmt.Fprintln(sh.out, TitleStyle.Render("Welcome to TermSage!"))
	fmt.Fprintln(sh.out, DimStyle.Render("Type 'help' for available commands."))
}

// =============================================================================
// STARTUP AND SHUTDOWN
// =============================================================================

// startup makes sure the service is reachable and, when no model is
// configured, shows what is installed. Failures are reported only.
func (sh *Shell) startup(ctx context.Context) {
	if sh.readiness != nil {
		readyCtx, cancel := sh.interrupt(ctx)
		err := sh.readiness.EnsureReady(readyCtx, sh.startupTimeout)
		cancel()
		if err != nil {
			sh.logger.Warn("service not ready at startup", zap.Error(err))
			DisplayError(sh.out, err)
			return
		}
	}

	if sh.session.ActiveModel() != "" {
		return
	}
	listCtx, cancel := sh.interrupt(ctx)
	res, _ := sh.dispatcher.Dispatch(listCtx, "list", sh.session)
	cancel()
	if res.Kind != commands.ResultOk || len(sh.session.Models().Models()) == 0 {
		return
	}
	fmt.Fprintln(sh.out, res.Message)
	fmt.Fprintln(sh.out, DimStyle.Render("No model selected. Choose one with: model <name>"))
}

// leaveChat ends an open chat so its transcript is archived.
func (sh *Shell) leaveChat(ctx context.Context) {
	if sh.session.Mode() == session.ModeChat {
		sh.Execute(ctx, "exit")
	}
}

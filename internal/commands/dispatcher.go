// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/termsage/internal/model"
	"github.com/jeranaias/termsage/internal/ollama"
	"github.com/jeranaias/termsage/internal/session"
	"github.com/jeranaias/termsage/internal/storage"
	"github.com/jeranaias/termsage/internal/util"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Service is the part of the Ollama client the dispatcher calls.
type Service interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
	ChatStream(ctx context.Context, req ollama.ChatRequest) (*ollama.Stream, error)
}

// Readiness makes sure the service is reachable. *lifecycle.Coordinator
// satisfies it.
type Readiness interface {
	EnsureReady(ctx context.Context, timeout time.Duration) error
}

// Archive stores finished chats. *storage.Archive satisfies it.
type Archive interface {
	SaveChat(ctx context.Context, modelName string, tr model.Transcript) (string, error)
	RecentChats(ctx context.Context, limit int) ([]storage.ChatSummary, error)
}

// Options configures a Dispatcher.
type Options struct {
	Service   Service
	Readiness Readiness // nil skips readiness checks
	Archive   Archive   // nil disables chat history

	// ReadyTimeout bounds each readiness check (default 30s).
	ReadyTimeout time.Duration

	// OnChunk receives chat reply text as it streams in.
	OnChunk func(text string)

	Logger *zap.Logger
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher turns input lines into session transitions and service calls.
//
// Dispatch never mutates the session it is given. It returns the next
// session, which equals the input on any error or cancellation.
type Dispatcher struct {
	registry     *Registry
	service      Service
	ready        Readiness
	archive      Archive
	readyTimeout time.Duration
	onChunk      func(string)
	logger       *zap.Logger
}

// NewDispatcher creates a dispatcher over the built-in command set.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 30 * time.Second
	}
	return &Dispatcher{
		registry:     NewRegistry(),
		service:      opts.Service,
		ready:        opts.Readiness,
		archive:      opts.Archive,
		readyTimeout: opts.ReadyTimeout,
		onChunk:      opts.OnChunk,
		logger:       opts.Logger.Named("dispatch"),
	}
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs one input line against s.
func (d *Dispatcher) Dispatch(ctx context.Context, line string, s session.Session) (Result, session.Session) {
	in := Parse(line)

	if s.Mode() == session.ModeChat {
		switch {
		case in.IsExitKeyword():
			return d.exitChat(ctx, s)
		case in.Raw == "":
			return Result{Kind: ResultOk}, s
		default:
			// Chat text goes to the model exactly as typed.
			return d.chatTurn(ctx, line, s)
		}
	}

	if in.Name == "" {
		return Result{Kind: ResultOk}, s
	}

	cmd, found := d.registry.Lookup(in.Name)
	if !found {
		err := session.NewUnknownCommand(in.Name, Suggest(in.Name, d.registry.NamesForMode(s.Mode())))
		return failure(CmdNone, err), s
	}
	if !cmd.ValidIn(s.Mode()) {
		return failure(cmd.ID, session.NewInvalidInMode(cmd.Name, s.Mode())), s
	}

	d.logger.Debug("dispatch",
		zap.String("command", cmd.Name),
		zap.Stringer("mode", s.Mode()))

	res, next := d.run(ctx, cmd, in.Args, s)
	if res.Kind == ResultError {
		d.logger.Info("command failed", zap.String("command", cmd.Name), zap.Error(res.Err))
	}
	return res, next
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, args string, s session.Session) (Result, session.Session) {
	switch cmd.ID {
	case CmdHelp:
		return d.help(s), s
	case CmdList:
		return d.list(ctx, s), s
	case CmdModel:
		return d.model(ctx, args, s)
	case CmdChat:
		return d.enterChat(ctx, s)
	case CmdGenerate:
		return d.generate(ctx, args, s), s
	case CmdTemperature:
		return d.temperature(args, s)
	case CmdSystem:
		return d.system(args, s)
	case CmdSettings:
		return d.enterSettings(s)
	case CmdAutoStart:
		return d.autoStart(args, s)
	case CmdBack:
		return d.back(s)
	case CmdHistory:
		return d.history(ctx), s
	case CmdClear:
		return withEffect(Result{Kind: ResultOk, Command: CmdClear}, s.Mode(), s.Mode(), EventClear), s
	case CmdExit:
		return withEffect(ok(CmdExit, "Goodbye!"), s.Mode(), s.Mode(), EventQuit), s
	default:
		return failure(cmd.ID, session.NewUnknownCommand(cmd.Name, nil)), s
	}
}

func (d *Dispatcher) ensureReady(ctx context.Context) error {
	if d.ready == nil {
		return nil
	}
	return d.ready.EnsureReady(ctx, d.readyTimeout)
}

// =============================================================================
// READ-ONLY COMMANDS
// =============================================================================

func (d *Dispatcher) help(s session.Session) Result {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	for _, cmd := range d.registry.ForMode(s.Mode()) {
		fmt.Fprintf(&sb, "  %s %s\n", util.PadRight(cmd.Usage, 24), cmd.Description)
	}
	return ok(CmdHelp, "%s", strings.TrimRight(sb.String(), "\n"))
}

func (d *Dispatcher) list(ctx context.Context, s session.Session) Result {
	if err := d.ensureReady(ctx); err != nil {
		return failure(CmdList, err)
	}

	models, err := s.Models().Refresh(ctx)
	if err != nil {
		return failure(CmdList, err)
	}
	if len(models) == 0 {
		return ok(CmdList, "No models installed. Pull one with: ollama pull <name>")
	}

	width := 0
	for _, m := range models {
		width = max(width, util.StringWidth(m.Name))
	}

	var sb strings.Builder
	sb.WriteString("Installed models:\n")
	for _, m := range models {
		marker := " "
		if m.Name == s.ActiveModel() {
			marker = "*"
		}
		fmt.Fprintf(&sb, "%s %s  %s\n", marker, util.PadRight(m.Name, width), m.FormatSize())
	}
	return ok(CmdList, "%s", strings.TrimRight(sb.String(), "\n"))
}

func (d *Dispatcher) history(ctx context.Context) Result {
	if d.archive == nil {
		return ok(CmdHistory, "Chat history is disabled.")
	}

	chats, err := d.archive.RecentChats(ctx, 10)
	if err != nil {
		return failure(CmdHistory, err)
	}
	if len(chats) == 0 {
		return ok(CmdHistory, "No archived chats yet.")
	}

	var sb strings.Builder
	sb.WriteString("Recent chats:\n")
	for _, c := range chats {
		fmt.Fprintf(&sb, "  %s  %-16s %3d turns  %s\n",
			c.StartedAt.Format("2006-01-02 15:04"),
			util.TruncateWidth(c.Model, 16), c.Turns, util.TruncateWidth(c.Title, 40))
	}
	return ok(CmdHistory, "%s", strings.TrimRight(sb.String(), "\n"))
}

// =============================================================================
// MODEL AND GENERATE
// =============================================================================

func (d *Dispatcher) model(ctx context.Context, args string, s session.Session) (Result, session.Session) {
	if args == "" {
		if s.ActiveModel() == "" {
			return ok(CmdModel, "No model selected. Use 'list' to see installed models."), s
		}
		return ok(CmdModel, "Current model: %s", s.ActiveModel()), s
	}

	if err := d.ensureReady(ctx); err != nil {
		return failure(CmdModel, err), s
	}

	name, err := s.ResolveModel(ctx, args)
	if err != nil {
		return failure(CmdModel, err), s
	}
	next, err := s.Select(ctx, name)
	if err != nil {
		return failure(CmdModel, err), s
	}

	d.logger.Info("model selected", zap.String("model", name))
	return ok(CmdModel, "Switched to model: %s", name), next
}

func (d *Dispatcher) generate(ctx context.Context, prompt string, s session.Session) Result {
	if prompt == "" {
		return failure(CmdGenerate, session.NewEmptyPrompt("generate"))
	}
	if s.ActiveModel() == "" {
		return failure(CmdGenerate, session.NewNoActiveModel("generate"))
	}
	if err := d.ensureReady(ctx); err != nil {
		return failure(CmdGenerate, err)
	}

	start := time.Now()
	text, err := d.service.Generate(ctx, ollama.GenerateRequest{
		Model:   s.ActiveModel(),
		Prompt:  prompt,
		System:  s.SystemPrompt(),
		Options: ollama.WithTemperature(s.Temperature()),
	})
	if err != nil {
		return failure(CmdGenerate, err)
	}

	d.logger.Debug("generate complete",
		zap.String("model", s.ActiveModel()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(text)))
	return Result{Kind: ResultOk, Command: CmdGenerate, Message: text}
}

// =============================================================================
// CHAT
// =============================================================================

func (d *Dispatcher) enterChat(ctx context.Context, s session.Session) (Result, session.Session) {
	// Without a model EnterChat fails locally; no need to wake the service.
	if s.ActiveModel() != "" {
		if err := d.ensureReady(ctx); err != nil {
			return failure(CmdChat, err), s
		}
	}

	next, err := s.EnterChat(ctx)
	if err != nil {
		return failure(CmdChat, err), s
	}

	res := ok(CmdChat, "Chatting with %s. Type 'exit' or 'quit' to return.", next.ActiveModel())
	return withEffect(res, s.Mode(), next.Mode(), EventEnterChat), next
}

// chatTurn sends one turn with the running transcript. The exchange is
// recorded only after the reply completes.
func (d *Dispatcher) chatTurn(ctx context.Context, text string, s session.Session) (Result, session.Session) {
	if err := d.ensureReady(ctx); err != nil {
		return failure(CmdChat, err), s
	}

	stream, err := d.service.ChatStream(ctx, ollama.ChatRequest{
		Model:    s.ActiveModel(),
		Messages: s.ChatMessages(text),
		Options:  ollama.WithTemperature(s.Temperature()),
	})
	if err != nil {
		return failure(CmdChat, err), s
	}

	reply, final, err := stream.Collect(func(c ollama.StreamChunk) {
		if d.onChunk != nil {
			d.onChunk(c.Content)
		}
	})
	if err != nil {
		d.logger.Info("chat turn abandoned", zap.Error(err), zap.Int("partial_chars", len(reply)))
		res := failure(CmdChat, err)
		res.Streamed = reply != ""
		return res, s
	}

	next, err := s.AppendTurn(text, reply)
	if err != nil {
		return failure(CmdChat, err), s
	}

	d.logger.Debug("chat turn complete",
		zap.Int("turns", next.Transcript().Len()),
		zap.Float64("tokens_per_sec", final.TokensPerSecond()))
	return Result{Kind: ResultOk, Command: CmdChat, Message: reply, Streamed: true}, next
}

func (d *Dispatcher) exitChat(ctx context.Context, s session.Session) (Result, session.Session) {
	next, tr, err := s.ExitChat()
	if err != nil {
		return failure(CmdExit, err), s
	}

	exchanges := tr.Len() / 2
	if d.archive != nil && !tr.IsEmpty() {
		if id, err := d.archive.SaveChat(ctx, s.ActiveModel(), tr); err != nil {
			d.logger.Warn("failed to archive chat", zap.Error(err))
		} else {
			d.logger.Debug("chat archived", zap.String("id", id))
		}
	}

	res := ok(CmdExit, "Chat ended after %d exchange(s).", exchanges)
	return withEffect(res, s.Mode(), next.Mode(), EventExitChat), next
}

// =============================================================================
// SETTINGS
// =============================================================================

func (d *Dispatcher) enterSettings(s session.Session) (Result, session.Session) {
	next, err := s.EnterSettings()
	if err != nil {
		return failure(CmdSettings, err), s
	}
	res := ok(CmdSettings, "%s\nUse 'temperature', 'system', 'autostart' or 'back'.", SettingsView(next))
	return withEffect(res, s.Mode(), next.Mode(), EventEnterSettings), next
}

func (d *Dispatcher) back(s session.Session) (Result, session.Session) {
	next, err := s.Back()
	if err != nil {
		return failure(CmdBack, err), s
	}
	return withEffect(ok(CmdBack, "Back to main."), s.Mode(), next.Mode(), EventLeaveSettings), next
}

func (d *Dispatcher) temperature(args string, s session.Session) (Result, session.Session) {
	if args == "" {
		return ok(CmdTemperature, "Temperature: %.2f", s.Temperature()), s
	}

	v, err := strconv.ParseFloat(args, 64)
	if err != nil {
		return failure(CmdTemperature, session.NewOutOfRange(args)), s
	}
	next, err := s.SetTemperature(v)
	if err != nil {
		return failure(CmdTemperature, err), s
	}
	return ok(CmdTemperature, "Temperature set to %.2f", next.Temperature()), next
}

func (d *Dispatcher) system(args string, s session.Session) (Result, session.Session) {
	next, err := s.SetSystemPrompt(args)
	if err != nil {
		return failure(CmdSystem, err), s
	}
	return ok(CmdSystem, "System prompt updated."), next
}

func (d *Dispatcher) autoStart(args string, s session.Session) (Result, session.Session) {
	enabled := !s.AutoStart()
	if args != "" {
		v, valid := parseToggle(args)
		if !valid {
			return failure(CmdAutoStart, &ArgumentError{Command: "autostart", Value: args, Expected: "on or off"}), s
		}
		enabled = v
	}

	next, err := s.SetAutoStart(enabled)
	if err != nil {
		return failure(CmdAutoStart, err), s
	}
	return ok(CmdAutoStart, "Auto-start: %s", onOff(next.AutoStart())), next
}

// SettingsView renders the current settings.
func SettingsView(s session.Session) string {
	active := s.ActiveModel()
	if active == "" {
		active = "(none)"
	}
	prompt := s.SystemPrompt()
	if prompt == "" {
		prompt = "(none)"
	}

	var sb strings.Builder
	sb.WriteString("Settings:\n")
	fmt.Fprintf(&sb, "  %s %s\n", util.PadRight("Model", 16), active)
	fmt.Fprintf(&sb, "  %s %.2f\n", util.PadRight("Temperature", 16), s.Temperature())
	fmt.Fprintf(&sb, "  %s %s\n", util.PadRight("System prompt", 16), util.TruncateWidth(util.SingleLine(prompt), 50))
	fmt.Fprintf(&sb, "  %s %d turns\n", util.PadRight("History limit", 16), s.HistoryLimit())
	fmt.Fprintf(&sb, "  %s %s", util.PadRight("Auto-start", 16), onOff(s.AutoStart()))
	return sb.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands parses, dispatches and completes the shell commands.
package commands

import (
	"sort"

	"github.com/jeranaias/termsage/internal/session"
)

// =============================================================================
// COMMAND IDENTIFIERS
// =============================================================================

// ID identifies a command. The set is closed.
type ID int

const (
	CmdNone ID = iota
	CmdHelp
	CmdList
	CmdModel
	CmdChat
	CmdGenerate
	CmdTemperature
	CmdSettings
	CmdExit
	CmdClear
	CmdSystem
	CmdAutoStart
	CmdBack
	CmdHistory
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command describes one command.
type Command struct {
	ID ID

	// Name is the primary command name (e.g., "model")
	Name string

	// Aliases are alternative names (e.g., "quit", "config")
	Aliases []string

	// Usage shows argument syntax (e.g., "model <name>")
	Usage string

	// Description is shown in help
	Description string

	// Arg determines argument completion
	Arg ArgType

	// Values for enum arguments
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeNone   ArgType = iota // No argument
	ArgTypeString                // Free-form text, never split
	ArgTypeModel                 // Model name from the model cache
	ArgTypeEnum                  // One of predefined values
)

// temperaturePresets are offered when completing "temperature ".
var temperaturePresets = []string{"0.0", "0.3", "0.5", "0.7", "1.0"}

// builtins lists every command in help order.
var builtins = []Command{
	{ID: CmdHelp, Name: "help", Usage: "help", Description: "Show available commands"},
	{ID: CmdList, Name: "list", Usage: "list", Description: "List installed models"},
	{ID: CmdModel, Name: "model", Usage: "model [name]", Description: "Show or switch the active model (prefix match)", Arg: ArgTypeModel},
	{ID: CmdChat, Name: "chat", Usage: "chat", Description: "Start a chat with the active model"},
	{ID: CmdGenerate, Name: "generate", Usage: "generate <prompt>", Description: "Generate a single response", Arg: ArgTypeString},
	{ID: CmdTemperature, Name: "temperature", Usage: "temperature [0.0-1.0]", Description: "Show or set the sampling temperature", Arg: ArgTypeEnum, Values: temperaturePresets},
	{ID: CmdSystem, Name: "system", Usage: "system <prompt>", Description: "Set the system prompt", Arg: ArgTypeString},
	{ID: CmdSettings, Name: "settings", Aliases: []string{"config"}, Usage: "settings | config", Description: "Open settings"},
	{ID: CmdAutoStart, Name: "autostart", Usage: "autostart [on|off]", Description: "Toggle starting Ollama automatically", Arg: ArgTypeEnum, Values: []string{"on", "off"}},
	{ID: CmdBack, Name: "back", Usage: "back", Description: "Leave settings"},
	{ID: CmdHistory, Name: "history", Usage: "history", Description: "List recent archived chats"},
	{ID: CmdClear, Name: "clear", Usage: "clear", Description: "Clear the screen"},
	{ID: CmdExit, Name: "exit", Aliases: []string{"quit"}, Usage: "exit | quit", Description: "Exit termsage (or leave chat)"},
}

// =============================================================================
// VALIDITY TABLE
// =============================================================================

// validity lists the modes in which each command may run. In Chat mode
// only exit/quit are commands; every other line is a chat turn.
var validity = map[ID][]session.Mode{
	CmdHelp:        {session.ModeMain, session.ModeSettings},
	CmdList:        {session.ModeMain},
	CmdModel:       {session.ModeMain},
	CmdChat:        {session.ModeMain},
	CmdGenerate:    {session.ModeMain},
	CmdTemperature: {session.ModeMain, session.ModeSettings},
	CmdSystem:      {session.ModeMain, session.ModeSettings},
	CmdSettings:    {session.ModeMain},
	CmdAutoStart:   {session.ModeSettings},
	CmdBack:        {session.ModeSettings},
	CmdHistory:     {session.ModeMain},
	CmdClear:       {session.ModeMain, session.ModeSettings},
	CmdExit:        {session.ModeMain, session.ModeChat, session.ModeSettings},
}

// ValidIn reports whether the command may run in mode.
func (c Command) ValidIn(mode session.Mode) bool {
	for _, m := range validity[c.ID] {
		if m == mode {
			return true
		}
	}
	return false
}

// Names returns the primary name followed by aliases.
func (c Command) Names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry resolves command names. It is immutable after construction.
type Registry struct {
	ordered []Command
	byName  map[string]Command
}

// NewRegistry creates a registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Command)}
	for _, cmd := range builtins {
		r.ordered = append(r.ordered, cmd)
		for _, name := range cmd.Names() {
			r.byName[name] = cmd
		}
	}
	return r
}

// Lookup finds a command by lowercase name or alias.
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.byName[name]
	return cmd, ok
}

// All returns the commands in help order.
func (r *Registry) All() []Command {
	out := make([]Command, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ForMode returns the commands valid in mode, in help order.
func (r *Registry) ForMode(mode session.Mode) []Command {
	var out []Command
	for _, cmd := range r.ordered {
		if cmd.ValidIn(mode) {
			out = append(out, cmd)
		}
	}
	return out
}

// NamesForMode returns every name and alias valid in mode, sorted.
func (r *Registry) NamesForMode(mode session.Mode) []string {
	var names []string
	for _, cmd := range r.ForMode(mode) {
		names = append(names, cmd.Names()...)
	}
	sort.Strings(names)
	return names
}

// AllNames returns every name and alias, sorted.
func (r *Registry) AllNames() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for termsage.
//
// Command: status
// Short:   Show service, session and file status
//
// Examples:
//   termsage status               Show status
//   termsage status --json        Status in JSON format
//
// Status Sections:
//   Service:  URL, reachability, process, auto-start, installed models
//   Session:  Configured model and whether it is installed, temperature
//   Files:    Config, log and archive paths, archived chat count
//   System:   Platform and memory, and whether the model should fit
//
// status only observes: it never starts the service.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/termsage/internal/detect"
	"github.com/jeranaias/termsage/internal/ollama"
	"github.com/jeranaias/termsage/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Section header style
	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")) // White

	// Label style for field names
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(14)

	valueGreenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Green

	valueYellowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("220")) // Yellow

	valueRedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red
)

// statusTimeout bounds the checks made by status.
const statusTimeout = 3 * time.Second

// =============================================================================
// STATUS DATA
// =============================================================================

// StatusData is the status report, also used for --json output.
type StatusData struct {
	Service StatusServiceInfo `json:"service"`
	Session StatusSessionInfo `json:"session"`
	Files   StatusFilesInfo   `json:"files"`
	System  detect.SystemInfo `json:"system"`
}

// StatusServiceInfo describes the Ollama service.
type StatusServiceInfo struct {
	URL            string `json:"url"`
	Reachable      bool   `json:"reachable"`
	ProcessRunning bool   `json:"process_running"`
	AutoStart      bool   `json:"auto_start"`
	Models         int    `json:"models"`
	Error          string `json:"error,omitempty"`
}

// StatusSessionInfo describes the configured session.
type StatusSessionInfo struct {
	ActiveModel    string  `json:"active_model"`
	ModelInstalled bool    `json:"model_installed"`
	Temperature    float64 `json:"temperature"`
	SystemPrompt   string  `json:"system_prompt"`
	HistoryLimit   int     `json:"history_limit"`

	// EstimatedMemory is zero when the model is not installed.
	EstimatedMemory uint64 `json:"estimated_memory,omitempty"`
	FitsMemory      bool   `json:"fits_memory"`
}

// StatusFilesInfo lists the files termsage uses.
type StatusFilesInfo struct {
	Config        string `json:"config"`
	ConfigExists  bool   `json:"config_exists"`
	Log           string `json:"log"`
	Archive       string `json:"archive,omitempty"`
	ArchivedChats int    `json:"archived_chats"`
}

// =============================================================================
// STATUS COMMAND
// =============================================================================

func newStatusCommand(flags *Flags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"s", "info"},
		Short:   "Show service, session and file status",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *App) error {
				data := CollectStatus(ctx, app)
				if asJSON {
					return NewJSONResponse("status", data).Print(app.Out)
				}
				PrintStatus(app.Out, data)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

// CollectStatus gathers the status report.
func CollectStatus(ctx context.Context, app *App) StatusData {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	cfg := app.Config
	data := StatusData{
		Service: StatusServiceInfo{
			URL:       cfg.Service.URL,
			AutoStart: app.Coordinator.AutoStart(),
		},
		Session: StatusSessionInfo{
			ActiveModel:  cfg.ActiveModel,
			Temperature:  cfg.Temperature,
			SystemPrompt: cfg.SystemPrompt,
			HistoryLimit: cfg.HistoryLimit,
		},
		Files: StatusFilesInfo{Config: app.SavePath},
	}

	health, err := app.Client.Health(ctx)
	data.Service.Reachable = health.Reachable
	if err != nil {
		data.Service.Error = err.Error()
	}
	if app.Finder != nil {
		data.Service.ProcessRunning, _ = app.Finder.Running(ctx)
	}
	data.System, _ = detect.System(ctx)
	if health.Reachable {
		if models, err := app.Models.Refresh(ctx); err == nil {
			data.Service.Models = len(models)
			i := slices.IndexFunc(models, func(m ollama.ModelInfo) bool {
				return m.Name == cfg.ActiveModel
			})
			if i >= 0 {
				data.Session.ModelInstalled = true
				data.Session.EstimatedMemory = detect.EstimateMemory(models[i])
				data.Session.FitsMemory = data.System.Fits(models[i])
			}
		} else {
			data.Service.Error = err.Error()
		}
	}

	if _, err := os.Stat(app.SavePath); err == nil {
		data.Files.ConfigExists = true
	}
	if path, err := cfg.LogPath(); err == nil {
		data.Files.Log = path
	}
	if app.Archive != nil {
		data.Files.Archive = app.Archive.Path()
		if n, err := app.Archive.Count(ctx); err == nil {
			data.Files.ArchivedChats = n
		}
	}
	return data
}

// PrintStatus writes the human-readable report.
func PrintStatus(w io.Writer, data StatusData) {
	fmt.Fprintln(w, TitleStyle.Render("TermSage Status"))
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("Service"))
	field(w, "URL:", data.Service.URL)
	switch {
	case data.Service.Reachable:
		field(w, "Ollama:", valueGreenStyle.Render("Running"))
	case data.Service.ProcessRunning:
		field(w, "Ollama:", valueYellowStyle.Render("Process running, not responding"))
	default:
		field(w, "Ollama:", valueRedStyle.Render("Not running"))
	}
	field(w, "Auto-start:", onOff(data.Service.AutoStart))
	if data.Service.Reachable {
		field(w, "Models:", fmt.Sprintf("%d installed", data.Service.Models))
	}
	if data.Service.Error != "" {
		field(w, "Last error:", DimStyle.Render(util.TruncateWidth(data.Service.Error, 60)))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("Session"))
	switch {
	case data.Session.ActiveModel == "":
		field(w, "Model:", DimStyle.Render("(none)"))
	case data.Session.ModelInstalled:
		field(w, "Model:", valueGreenStyle.Render(data.Session.ActiveModel))
	case data.Service.Reachable:
		field(w, "Model:", valueYellowStyle.Render(data.Session.ActiveModel+" (not installed)"))
	default:
		field(w, "Model:", data.Session.ActiveModel)
	}
	if data.Session.EstimatedMemory > 0 && data.System.AvailableMemory > 0 {
		needs := "~" + humanize.Bytes(data.Session.EstimatedMemory)
		if !data.Session.FitsMemory {
			needs += valueYellowStyle.Render(" (more than available memory)")
		}
		field(w, "Needs:", needs)
	}
	field(w, "Temperature:", fmt.Sprintf("%.2f", data.Session.Temperature))
	prompt := data.Session.SystemPrompt
	if prompt == "" {
		prompt = "(none)"
	}
	field(w, "System:", util.TruncateWidth(util.SingleLine(prompt), 50))
	field(w, "History:", fmt.Sprintf("%d turns", data.Session.HistoryLimit))
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("Files"))
	config := data.Files.Config
	if !data.Files.ConfigExists {
		config += DimStyle.Render(" (not created yet)")
	}
	field(w, "Config:", config)
	field(w, "Log:", data.Files.Log)
	if data.Files.Archive != "" {
		field(w, "Archive:", fmt.Sprintf("%s (%d chats)", data.Files.Archive, data.Files.ArchivedChats))
	} else {
		field(w, "Archive:", DimStyle.Render("disabled"))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, sectionStyle.Render("System"))
	field(w, "Platform:", fmt.Sprintf("%s/%s, %d CPUs", data.System.OS, data.System.Arch, data.System.CPUs))
	if data.System.TotalMemory > 0 {
		field(w, "Memory:", fmt.Sprintf("%s available of %s",
			humanize.Bytes(data.System.AvailableMemory), humanize.Bytes(data.System.TotalMemory)))
	} else {
		field(w, "Memory:", DimStyle.Render("unknown"))
	}
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s%s\n", labelStyle.Render(label), value)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

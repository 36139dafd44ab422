// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package lifecycle

import (
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// installPaths lists common Unix/macOS locations for command.
func installPaths(command string) []string {
	name := filepath.Base(command)
	paths := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
		filepath.Join("/opt", name, name),
	}

	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths,
			filepath.Join(home, ".local", "bin", name),
			filepath.Join(home, "bin", name),
		)
	}

	if name == "ollama" {
		paths = append(paths, "/Applications/Ollama.app/Contents/Resources/ollama")
	}
	return paths
}

// detach puts the child in its own process group so terminal signals
// sent to us do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

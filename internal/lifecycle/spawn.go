// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lifecycle

import (
	"fmt"
	"os"
	"os/exec"
)

// CommandSpawner starts the service executable detached from this process.
type CommandSpawner struct {
	// Command is the executable name or path (default "ollama").
	Command string

	// Args are passed to the executable (default ["serve"]).
	Args []string
}

// NewCommandSpawner returns a spawner with the given command and args,
// falling back to "ollama serve".
func NewCommandSpawner(command string, args []string) *CommandSpawner {
	if command == "" {
		command = "ollama"
	}
	if len(args) == 0 {
		args = []string{"serve"}
	}
	return &CommandSpawner{Command: command, Args: args}
}

// Spawn starts the process and releases it immediately.
func (s *CommandSpawner) Spawn() error {
	path, err := findExecutable(s.Command)
	if err != nil {
		return err
	}

	cmd := exec.Command(path, s.Args...)
	// GPU-related variables such as OLLAMA_VULKAN must reach the child.
	cmd.Env = os.Environ()
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	// The process keeps running after we exit; we never wait for it.
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}
	return nil
}

// findExecutable resolves command through PATH and then through the
// platform's usual install locations.
func findExecutable(command string) (string, error) {
	if path, err := exec.LookPath(command); err == nil {
		return path, nil
	}

	for _, p := range installPaths(command) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common installation directories", command)
}

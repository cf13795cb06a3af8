// ABOUTME: Static supervisor: points the orchestrator at a preconfigured port.
// ABOUTME: Process discovery and launching live outside this repository.

package main

import (
	"context"
	"fmt"
)

// staticSupervisor satisfies conversation.Supervisor without managing a
// process: Start simply reports the configured port. It exists so the TUI
// can run against a server the user launched themselves.
type staticSupervisor struct {
	port    int
	workDir string
	lastErr string
}

func newStaticSupervisor(port int, workDir string) *staticSupervisor {
	return &staticSupervisor{port: port, workDir: workDir}
}

func (s *staticSupervisor) Start(ctx context.Context) (int, string, error) {
	if s.port == 0 {
		s.lastErr = "no server port configured"
		return 0, "", fmt.Errorf("no server port configured")
	}
	return s.port, s.workDir, nil
}

func (s *staticSupervisor) Stop() error {
	return nil
}

func (s *staticSupervisor) IsRunning() bool {
	return false
}

func (s *staticSupervisor) ErrorMessage() string {
	return s.lastErr
}

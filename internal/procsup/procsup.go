// Package procsup supervises external child processes (the
// per-camera vdo_publisher services the Mode Manager starts in place
// of Ingest) as bounded start/stop operations rather than
// fire-and-forget subprocess spawns.
package procsup

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

const stopGrace = 5 * time.Second

// Spec describes one supervised child process.
type Spec struct {
	Name string
	Path string
	Args []string
}

type child struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Supervisor owns a set of named child processes, one per role, and
// is the sole starter/stopper for each.
type Supervisor struct {
	mu       sync.Mutex
	children map[string]*child
	log      zerolog.Logger
}

// New constructs an empty Supervisor.
func New(log zerolog.Logger) *Supervisor {
	return &Supervisor{children: make(map[string]*child), log: log}
}

// Start launches spec's process if it is not already running.
// Idempotent: starting an already-running name is a no-op.
func (s *Supervisor) Start(ctx context.Context, spec Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.children[spec.Name]; running {
		return nil
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	w := s.log.With().Str("process", spec.Name).Logger()
	cmd.Stdout = logWriter{log: w, level: zerolog.InfoLevel}
	cmd.Stderr = logWriter{log: w, level: zerolog.WarnLevel}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("procsup: starting %s: %w", spec.Name, err)
	}

	c := &child{cmd: cmd, done: make(chan struct{})}
	s.children[spec.Name] = c

	go func() {
		_ = cmd.Wait()
		close(c.done)
	}()

	return nil
}

// Stop sends SIGTERM to name's process and waits up to stopGrace for
// exit, escalating to SIGKILL on timeout. Idempotent: stopping a name
// that isn't running is a no-op.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	c, running := s.children[name]
	if running {
		delete(s.children, name)
	}
	s.mu.Unlock()

	if !running {
		return nil
	}

	_ = c.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-c.done:
		return nil
	case <-time.After(stopGrace):
		_ = c.cmd.Process.Kill()
		<-c.done
		return nil
	}
}

// IsRunning reports whether name currently has a supervised process.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.children[name]
	return ok
}

// StopAll stops every currently-running child.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.children))
	for name := range s.children {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		_ = s.Stop(name)
	}
}

// logWriter adapts a zerolog.Logger to an io.Writer for process
// stdout/stderr capture, one log event per Write call.
type logWriter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.WithLevel(w.level).Msg(string(p))
	return len(p), nil
}

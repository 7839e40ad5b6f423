//go:build !cgo

// Package gst stubs out GStreamer pipeline management when CGO is
// disabled: go-gst requires CGO, so a non-CGO build still compiles but
// every operation fails loudly instead of silently doing nothing.
package gst

import (
	"context"
	"errors"
	"time"
)

// ErrCGORequired is returned by every Pipeline operation in a non-CGO build.
var ErrCGORequired = errors.New("stagebus: GStreamer pipelines require CGO")

func Init() {}

type Frame struct {
	Data       []byte
	PTS        time.Duration
	IsKeyframe bool
	Timestamp  time.Time
}

type BusEventKind string

const (
	BusEventEOS     BusEventKind = "eos"
	BusEventError   BusEventKind = "error"
	BusEventWarning BusEventKind = "warning"
)

type BusEvent struct {
	Kind    BusEventKind
	Message string
}

// Pipeline is a non-functional stub when CGO is disabled.
type Pipeline struct {
	desc string
}

func New(desc string) (*Pipeline, error) {
	return nil, ErrCGORequired
}

func (p *Pipeline) Start(ctx context.Context) error             { return ErrCGORequired }
func (p *Pipeline) Frames() <-chan Frame                        { return nil }
func (p *Pipeline) Bus() <-chan BusEvent                        { return nil }
func (p *Pipeline) SetElementProperty(_, _ string, _ any) error { return ErrCGORequired }
func (p *Pipeline) SetPadProperty(_, _, _ string, _ any) error  { return ErrCGORequired }
func (p *Pipeline) PushBuffer(_ string, _ []byte, _ time.Duration) error { return ErrCGORequired }
func (p *Pipeline) WatchBufferFlow(_ string, _ func()) error            { return ErrCGORequired }
func (p *Pipeline) Stop()                                       {}
func (p *Pipeline) IsRunning() bool                             { return false }
func (p *Pipeline) Description() string                         { return p.desc }

func ElementExists(name string) bool { return false }

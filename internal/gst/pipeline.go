//go:build cgo

// Package gst wraps GStreamer pipelines for stagebus using go-gst
// bindings: parse a pipeline description, watch the bus on its own
// goroutine, and surface frames/errors over channels. Pipelines come
// in two shapes: plain fire-and-forget publish pipelines with no
// appsink at all, and pipelines with a named appsink plus pad-property
// access for the mixer's compositor inputs — Pipeline supports both.
package gst

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
)

var initOnce sync.Once

// Init initializes the GStreamer library. Safe to call repeatedly.
func Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// Frame is a decoded/encoded buffer pulled from an appsink.
type Frame struct {
	Data       []byte
	PTS        time.Duration
	IsKeyframe bool
	Timestamp  time.Time
}

// BusEvent is a terminal or informational event observed on the
// pipeline bus.
type BusEvent struct {
	Kind    BusEventKind
	Message string
}

type BusEventKind string

const (
	BusEventEOS     BusEventKind = "eos"
	BusEventError   BusEventKind = "error"
	BusEventWarning BusEventKind = "warning"
)

// Pipeline wraps a *gst.Pipeline built from a textual description
// (produced by internal/pipeline). If the description names an
// appsink called "videosink", frames are delivered on Frames();
// otherwise Frames() returns nil and the pipeline just runs (the
// ingest-publish and reveal-publish roles have no local appsink, they
// push straight to the media server via an rtspclientsink).
type Pipeline struct {
	pipeline *gst.Pipeline
	appsink  *app.Sink
	frameCh  chan Frame
	busCh    chan BusEvent
	running  atomic.Bool
	stopOnce sync.Once
	desc     string
}

// New parses desc and, if present, binds the "videosink" appsink.
func New(desc string) (*Pipeline, error) {
	Init()

	p, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("parsing pipeline: %w", err)
	}

	pl := &Pipeline{
		pipeline: p,
		frameCh:  make(chan Frame, 8),
		busCh:    make(chan BusEvent, 8),
		desc:     desc,
	}

	if elem, err := p.GetElementByName("videosink"); err == nil && elem != nil {
		if sink := app.SinkFromElement(elem); sink != nil {
			pl.appsink = sink
		}
	}

	return pl, nil
}

// Start sets the pipeline to PLAYING and begins bus/frame delivery.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.running.Load() {
		return nil
	}

	if p.appsink != nil {
		p.appsink.SetProperty("emit-signals", true)
		p.appsink.SetProperty("max-buffers", uint(2))
		p.appsink.SetProperty("drop", true)
		p.appsink.SetProperty("sync", false)
		p.appsink.SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc: p.onNewSample,
		})
	}

	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("setting pipeline playing: %w", err)
	}
	p.running.Store(true)

	go p.watchBus(ctx)

	return nil
}

func (p *Pipeline) onNewSample(sink *app.Sink) gst.FlowReturn {
	if !p.running.Load() {
		return gst.FlowEOS
	}

	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.FlowOK
	}
	defer buffer.Unmap()

	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())

	var pts time.Duration
	if d := buffer.PresentationTimestamp().AsDuration(); d != nil {
		pts = *d
	}
	isKeyframe := !buffer.HasFlags(gst.BufferFlagDeltaUnit)

	frame := Frame{Data: data, PTS: pts, IsKeyframe: isKeyframe, Timestamp: time.Now()}

	select {
	case p.frameCh <- frame:
	default:
		// Drop rather than block the GStreamer thread; low latency beats completeness here.
	}

	return gst.FlowOK
}

func (p *Pipeline) watchBus(ctx context.Context) {
	bus := p.pipeline.GetPipelineBus()
	if bus == nil {
		return
	}

	for p.running.Load() {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		default:
		}

		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			p.emitBus(BusEvent{Kind: BusEventEOS})
			p.Stop()
			return
		case gst.MessageError:
			if gerr := msg.ParseError(); gerr != nil {
				p.emitBus(BusEvent{Kind: BusEventError, Message: gerr.Error()})
			}
			p.Stop()
			return
		case gst.MessageWarning:
			if gwarn := msg.ParseWarning(); gwarn != nil {
				p.emitBus(BusEvent{Kind: BusEventWarning, Message: gwarn.Error()})
			}
		case gst.MessageStateChanged:
			// Not surfaced; supervisors only care about EOS/Error/Warning.
		}
	}
}

func (p *Pipeline) emitBus(ev BusEvent) {
	select {
	case p.busCh <- ev:
	default:
	}
}

// Frames returns the decoded-frame channel, or nil if this pipeline
// has no "videosink" appsink.
func (p *Pipeline) Frames() <-chan Frame {
	if p.appsink == nil {
		return nil
	}
	return p.frameCh
}

// Bus returns the bus-event channel (EOS/error/warning).
func (p *Pipeline) Bus() <-chan BusEvent { return p.busCh }

// SetElementProperty sets a property on a named element, used by the
// mixer to update compositor pad placement
// (xpos/ypos/width/height/alpha/zorder) without rebuilding the
// pipeline.
func (p *Pipeline) SetElementProperty(elementName, prop string, value any) error {
	elem, err := p.pipeline.GetElementByName(elementName)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", elementName, err)
	}
	elem.SetProperty(prop, value)
	return nil
}

// SetPadProperty sets a property directly on a named pad of a named
// element, used by the mixer to update a compositor sink pad's
// xpos/ypos/width/height/alpha/zorder without touching the element
// itself or rebuilding the pipeline.
func (p *Pipeline) SetPadProperty(elementName, padName, prop string, value any) error {
	elem, err := p.pipeline.GetElementByName(elementName)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", elementName, err)
	}
	pad := elem.GetStaticPad(padName)
	if pad == nil {
		return fmt.Errorf("pad %q not found on element %q", padName, elementName)
	}
	pad.SetProperty(prop, value)
	return nil
}

// WatchBufferFlow attaches a pad probe to elementName's static src pad
// and invokes fn on every buffer that passes through it. It's the
// liveness signal for pipelines with no appsink to pull samples from
// (the ingest-publish and reveal-publish roles push straight to the
// media server via rtspclientsink/appsrc): fn fires on real buffer
// flow, independent of the encoder or sink ever reporting bus events.
func (p *Pipeline) WatchBufferFlow(elementName string, fn func()) error {
	elem, err := p.pipeline.GetElementByName(elementName)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", elementName, err)
	}
	pad := elem.GetStaticPad("src")
	if pad == nil {
		return fmt.Errorf("element %q has no static src pad", elementName)
	}
	pad.AddProbe(gst.PadProbeTypeBuffer, func(_ *gst.Pad, _ *gst.PadProbeInfo) gst.PadProbeReturn {
		fn()
		return gst.PadProbeOK
	})
	return nil
}

// PushBuffer pushes data into the named appsrc element as a single
// buffer timestamped with pts, for pipelines fed by an external
// frame source (the Reveal renderer's browser-to-video appsrc) rather
// than a capture device. Returns an error if the element doesn't
// exist or isn't an appsrc.
func (p *Pipeline) PushBuffer(elementName string, data []byte, pts time.Duration) error {
	elem, err := p.pipeline.GetElementByName(elementName)
	if err != nil {
		return fmt.Errorf("appsrc %q not found: %w", elementName, err)
	}
	src := app.SrcFromElement(elem)
	if src == nil {
		return fmt.Errorf("element %q is not an appsrc", elementName)
	}

	buf := gst.NewBufferFromBytes(data)
	buf.SetPresentationTimestamp(gst.ClockTime(pts))

	if ret := src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("pushing buffer to %q: flow return %v", elementName, ret)
	}
	return nil
}

// Stop tears the pipeline down to NULL and closes the channel. Bounded
// by the caller via context passed to Start; Stop itself is
// synchronous and idempotent.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		if p.pipeline != nil {
			p.pipeline.SetState(gst.StateNull)
		}
		close(p.frameCh)
		close(p.busCh)
	})
}

// IsRunning reports whether Start has been called and Stop has not.
func (p *Pipeline) IsRunning() bool { return p.running.Load() }

// Description returns the pipeline string this Pipeline was built from
// (for logging/diagnostics).
func (p *Pipeline) Description() string { return p.desc }

// ElementExists checks whether a named GStreamer element factory is
// available on this system (used at startup to fail fast if the
// hardware encoder plugin is missing).
func ElementExists(name string) bool {
	Init()
	return gst.Find(name) != nil
}

// Package reveal implements the Graphics Renderers' browser-to-video
// outputs: exactly two fixed outputs, "slides" and "slides_overlay",
// each a headless Chrome page rendered via go-rod, captured at a fixed
// framerate and pushed into a publish pipeline's appsrc.
package reveal

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"bytes"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/gst"
	"github.com/stagebus/stagebus/internal/pipeline"
)

// OutputID is one of the two fixed Reveal output names.
type OutputID string

const (
	OutputSlides        OutputID = "slides"
	OutputSlidesOverlay OutputID = "slides_overlay"
)

// State is the lifecycle state of one Reveal output.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Config parameterizes every Reveal output's render target.
type Config struct {
	Width, Height, Framerate int
	BitrateKbps              int
	MediaServerPath          string // path prefix; the per-output path is MediaServerPath + "_" + output id
}

type output struct {
	mu     sync.Mutex
	state  State
	url    string
	cancel context.CancelFunc

	browser *rod.Browser
	page    *rod.Page
	pipe    *gst.Pipeline
}

// Status is a snapshot of one output.
type Status struct {
	ID              OutputID
	State           State
	PresentationURL string
	MediaServerPath string
}

// Manager supervises both fixed Reveal outputs.
type Manager struct {
	cfg      Config
	platform pipeline.Platform
	launcher string // rod-managed launcher URL, empty to launch a local chrome
	log      zerolog.Logger

	mu      sync.Mutex
	outputs map[OutputID]*output
}

// New constructs a Manager for both fixed outputs, idle until Start
// is called for each.
func New(cfg Config, platform pipeline.Platform, launcherURL string, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		platform: platform,
		launcher: launcherURL,
		log:      log,
		outputs: map[OutputID]*output{
			OutputSlides:        {state: StateIdle},
			OutputSlidesOverlay: {state: StateIdle},
		},
	}
}

func validOutput(id OutputID) bool {
	return id == OutputSlides || id == OutputSlidesOverlay
}

// Start begins rendering presentationURL to output id. Idempotent:
// starting an already-running output with the same URL is a no-op;
// starting with a different URL restarts it.
func (m *Manager) Start(ctx context.Context, id OutputID, presentationID, url string) error {
	if !validOutput(id) {
		return errs.Newf(errs.KindInvalidRequest, "unknown reveal output %q", id)
	}

	m.mu.Lock()
	o := m.outputs[id]
	m.mu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning && o.url == url {
		return nil
	}
	if o.state == StateRunning || o.state == StateStarting {
		m.stopLocked(o)
	}

	o.state = StateStarting
	o.url = url

	browser, page, err := m.launchPage(url)
	if err != nil {
		o.state = StateIdle
		return errs.Wrap(errs.KindPipelineConstruct, "launching browser for reveal output "+string(id), err)
	}

	streamPath := string(id)
	if m.cfg.MediaServerPath != "" {
		streamPath = m.cfg.MediaServerPath + "_" + string(id)
	}

	desc, err := pipeline.Build(pipeline.Input{
		Role:             pipeline.RoleRevealPublish,
		Width:            m.cfg.Width,
		Height:           m.cfg.Height,
		Framerate:        m.cfg.Framerate,
		BitrateKbps:      m.cfg.BitrateKbps,
		StreamPath:       streamPath,
		RevealAppSrcName: "revealsrc_" + string(id),
	}, m.platform)
	if err != nil {
		_ = page.Close()
		o.state = StateIdle
		return errs.Wrap(errs.KindPipelineConstruct, "building reveal publish pipeline for "+string(id), err)
	}

	pipe, err := gst.New(desc)
	if err != nil {
		_ = page.Close()
		o.state = StateIdle
		return errs.Wrap(errs.KindPipelineConstruct, "parsing reveal publish pipeline for "+string(id), err)
	}
	if err := pipe.Start(ctx); err != nil {
		_ = page.Close()
		o.state = StateIdle
		return errs.Wrap(errs.KindPipelineConstruct, "starting reveal publish pipeline for "+string(id), err)
	}

	o.browser = browser
	o.page = page
	o.pipe = pipe

	captureCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	appsrc := "revealsrc_" + string(id)
	go m.captureLoop(captureCtx, o, appsrc)

	o.state = StateRunning
	return nil
}

// Stop tears down output id. Idempotent.
func (m *Manager) Stop(id OutputID) error {
	if !validOutput(id) {
		return errs.Newf(errs.KindInvalidRequest, "unknown reveal output %q", id)
	}

	m.mu.Lock()
	o := m.outputs[id]
	m.mu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	m.stopLocked(o)
	return nil
}

func (m *Manager) stopLocked(o *output) {
	o.state = StateStopping
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.pipe != nil {
		o.pipe.Stop()
		o.pipe = nil
	}
	if o.page != nil {
		_ = o.page.Close()
		o.page = nil
	}
	if o.browser != nil && m.launcher == "" {
		_ = o.browser.Close()
	}
	o.browser = nil
	o.state = StateIdle
}

// StopAll stops both outputs.
func (m *Manager) StopAll() {
	for _, id := range []OutputID{OutputSlides, OutputSlidesOverlay} {
		_ = m.Stop(id)
	}
}

// Status returns a snapshot of both outputs.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.outputs))
	for id, o := range m.outputs {
		o.mu.Lock()
		path := string(id)
		if m.cfg.MediaServerPath != "" {
			path = m.cfg.MediaServerPath + "_" + string(id)
		}
		out = append(out, Status{ID: id, State: o.state, PresentationURL: o.url, MediaServerPath: path})
		o.mu.Unlock()
	}
	return out
}

// launchPage starts (or reuses, via a rod-managed launcher) a browser
// and navigates a fresh page to url.
func (m *Manager) launchPage(url string) (*rod.Browser, *rod.Page, error) {
	var browser *rod.Browser

	if m.launcher != "" {
		l, err := launcher.NewManaged(m.launcher)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to managed launcher: %w", err)
		}
		browser = rod.New().Client(l.MustClient())
	} else {
		launchURL := launcher.New().Headless(true).MustLaunch()
		browser = rod.New().ControlURL(launchURL)
	}

	if err := browser.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connecting to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		_ = browser.Close()
		return nil, nil, fmt.Errorf("opening page: %w", err)
	}
	page.MustSetViewport(m.cfg.Width, m.cfg.Height, 1, false)

	return browser, page, nil
}

// captureLoop screenshots o.page at the configured framerate and
// pushes each frame's decoded pixels into the publish pipeline's
// appsrc, stamped with the frame's own presentation timestamp so
// Cairo overlay animation (driven by the same clock downstream) stays
// in lockstep with what was actually rendered.
func (m *Manager) captureLoop(ctx context.Context, o *output, appsrcName string) {
	interval := time.Second / time.Duration(max(m.cfg.Framerate, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pts time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img, err := captureFrame(o.page)
			if err != nil {
				m.log.Warn().Err(err).Msg("reveal frame capture failed")
				continue
			}

			o.mu.Lock()
			pipe := o.pipe
			o.mu.Unlock()
			if pipe == nil {
				return
			}

			if err := pipe.PushBuffer(appsrcName, rgbaBytes(img), pts); err != nil {
				m.log.Warn().Err(err).Msg("reveal frame push failed")
			}
			pts += interval
		}
	}
}

func captureFrame(page *rod.Page) (*image.NRGBA, error) {
	data, err := page.Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}

	nrgba, ok := decoded.(*image.NRGBA)
	if ok {
		return nrgba, nil
	}

	bounds := decoded.Bounds()
	converted := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			converted.Set(x, y, decoded.At(x, y))
		}
	}
	return converted, nil
}

func rgbaBytes(img *image.NRGBA) []byte {
	return img.Pix
}

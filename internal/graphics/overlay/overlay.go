// Package overlay implements the Cairo Overlay Manager: a set of
// broadcast-graphics elements drawn directly with Cairo, without a
// browser, for per-frame compositing inside the Mixer pipeline.
// Animation timing is driven by the frame's own presentation
// timestamp, never wall time, so overlay motion stays correct under
// pipeline stalls or seeks.
package overlay

import (
	"strconv"
	"sync"
	"time"

	cairo "github.com/ungerik/go-cairo"

	"github.com/stagebus/stagebus/internal/errs"
)

// Kind tags which overlay variant an element is.
type Kind string

const (
	KindLowerThird Kind = "lower_third"
	KindScoreboard Kind = "scoreboard"
	KindTicker     Kind = "ticker"
	KindTimer      Kind = "timer"
	KindLogo       Kind = "logo"
)

// AnimState is an element's position in its show/hide animation.
type AnimState string

const (
	AnimHidden   AnimState = "hidden"
	AnimEntering AnimState = "entering"
	AnimVisible  AnimState = "visible"
	AnimExiting  AnimState = "exiting"
)

const animDuration = 300 * time.Millisecond

// Data carries an element's presentation content. Which fields are
// meaningful depends on Kind.
type Data struct {
	Title, Subtitle string
	Text            string
	TeamA, TeamB     string
	ScoreA, ScoreB   int
	TimerLabel      string
	TimerStart      time.Duration // presentation-timestamp offset the timer counts from
	LogoPath        string
	X, Y            float64 // normalized [0,1] position
	Color           [4]float64
}

// Element is one overlay graphic, identified by ElementID.
type Element struct {
	ElementID string
	Kind      Kind
	Data      Data

	state        AnimState
	stateChangedAt time.Duration // presentation timestamp the current state began at
}

// Manager owns the live element set and rasterizes it on demand. One
// lock protects the set; the draw callback holds it only long enough
// to copy the elements it needs, never for the duration of a Cairo
// draw call.
type Manager struct {
	mu       sync.Mutex
	elements map[string]*Element
	width, height int
}

// New constructs a Manager sized to the mixer's output resolution.
func New(width, height int) *Manager {
	return &Manager{elements: make(map[string]*Element), width: width, height: height}
}

// Create adds a new element in the hidden state.
func (m *Manager) Create(id string, kind Kind, data Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.elements[id]; exists {
		return errs.Newf(errs.KindInvalidRequest, "overlay element %q already exists", id)
	}
	m.elements[id] = &Element{ElementID: id, Kind: kind, Data: data, state: AnimHidden}
	return nil
}

// Update replaces an existing element's presentation data without
// touching its animation state.
func (m *Manager) Update(id string, data Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.elements[id]
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "overlay element %q not found", id)
	}
	el.Data = data
	return nil
}

// Show transitions id into the entering/visible animation, timed from
// currentPTS (the most recent frame's presentation timestamp).
func (m *Manager) Show(id string, currentPTS time.Duration) error {
	return m.setState(id, AnimEntering, currentPTS)
}

// Hide transitions id into the exiting/hidden animation.
func (m *Manager) Hide(id string, currentPTS time.Duration) error {
	return m.setState(id, AnimExiting, currentPTS)
}

func (m *Manager) setState(id string, state AnimState, currentPTS time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.elements[id]
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "overlay element %q not found", id)
	}
	el.state = state
	el.stateChangedAt = currentPTS
	return nil
}

// Delete removes an element entirely.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.elements[id]; !ok {
		return errs.Newf(errs.KindInvalidRequest, "overlay element %q not found", id)
	}
	delete(m.elements, id)
	return nil
}

// Clear removes every element.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements = make(map[string]*Element)
}

// List returns a copy of every current element.
func (m *Manager) List() []Element {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Element, 0, len(m.elements))
	for _, el := range m.elements {
		out = append(out, *el)
	}
	return out
}

// advance resolves an element's animation progress (0..1) at pts and,
// for elements fully exited, flips them to hidden. Called with the
// lock held.
func advance(el *Element, pts time.Duration) (visible bool, progress float64) {
	elapsed := pts - el.stateChangedAt
	switch el.state {
	case AnimHidden:
		return false, 0
	case AnimEntering:
		if elapsed >= animDuration {
			el.state = AnimVisible
			return true, 1
		}
		return true, float64(elapsed) / float64(animDuration)
	case AnimVisible:
		return true, 1
	case AnimExiting:
		if elapsed >= animDuration {
			el.state = AnimHidden
			return false, 0
		}
		return true, 1 - float64(elapsed)/float64(animDuration)
	default:
		return false, 0
	}
}

// Draw rasterizes every visible element onto a fresh ARGB32 surface
// sized to the manager's configured resolution and returns the raw
// premultiplied-alpha pixel buffer, ready to push into the mixer's
// overlay compositor input. pts is the program output's current
// presentation timestamp.
func (m *Manager) Draw(pts time.Duration) []byte {
	surface := cairo.NewSurface(cairo.FORMAT_ARGB32, m.width, m.height)
	defer surface.Destroy()

	type visibleElement struct {
		el    Element
		alpha float64
	}

	m.mu.Lock()
	visible := make([]visibleElement, 0, len(m.elements))
	for _, el := range m.elements {
		isVisible, alpha := advance(el, pts)
		if !isVisible {
			continue
		}
		visible = append(visible, visibleElement{el: *el, alpha: alpha})
	}
	m.mu.Unlock()

	for _, v := range visible {
		drawElement(surface, v.el, v.alpha, m.width, m.height)
	}

	surface.Flush()
	return surface.GetData()
}

// dims holds a draw call's target surface size, so every drawX
// function can scale Data's normalized [0,1] coordinates and sizes
// into the actual pixel space it's rasterizing into — Cairo itself has
// no notion of "normalized" units.
type dims struct{ w, h float64 }

// scale converts a normalized (x, y) position into d's pixel space.
func (d dims) scale(x, y float64) (px, py float64) {
	return x * d.w, y * d.h
}

func drawElement(s *cairo.Surface, el Element, alpha float64, width, height int) {
	d := dims{w: float64(width), h: float64(height)}
	switch el.Kind {
	case KindLowerThird:
		drawLowerThird(s, el, alpha, d)
	case KindScoreboard:
		drawScoreboard(s, el, alpha, d)
	case KindTicker:
		drawTicker(s, el, alpha, d)
	case KindTimer:
		drawTimer(s, el, alpha, d)
	case KindLogo:
		drawLogo(s, el, alpha, d)
	}
}

func drawLowerThird(s *cairo.Surface, el Element, alpha float64, d dims) {
	x, y := d.scale(el.Data.X, el.Data.Y)

	s.Save()
	s.SetSourceRGBA(0, 0, 0, 0.75*alpha)
	s.Rectangle(x, y, 0.5*d.w, 0.12*d.h)
	s.Fill()
	s.SetSourceRGBA(1, 1, 1, alpha)
	s.SelectFontFace("sans-serif", cairo.FONT_SLANT_NORMAL, cairo.FONT_WEIGHT_BOLD)
	s.SetFontSize(0.04 * d.h)
	s.MoveTo(x+0.01*d.w, y+0.05*d.h)
	s.ShowText(el.Data.Title)
	s.SetFontSize(0.025 * d.h)
	s.MoveTo(x+0.01*d.w, y+0.09*d.h)
	s.ShowText(el.Data.Subtitle)
	s.Restore()
}

func drawScoreboard(s *cairo.Surface, el Element, alpha float64, d dims) {
	x, y := d.scale(el.Data.X, el.Data.Y)

	s.Save()
	s.SetSourceRGBA(0.1, 0.1, 0.1, 0.85*alpha)
	s.Rectangle(x, y, 0.3*d.w, 0.08*d.h)
	s.Fill()
	s.SetSourceRGBA(1, 1, 1, alpha)
	s.SelectFontFace("sans-serif", cairo.FONT_SLANT_NORMAL, cairo.FONT_WEIGHT_BOLD)
	s.SetFontSize(0.03 * d.h)
	s.MoveTo(x+0.01*d.w, y+0.05*d.h)
	s.ShowText(scoreLine(el.Data))
	s.Restore()
}

func scoreLine(d Data) string {
	return d.TeamA + " " + strconv.Itoa(d.ScoreA) + " - " + strconv.Itoa(d.ScoreB) + " " + d.TeamB
}

func drawTicker(s *cairo.Surface, el Element, alpha float64, d dims) {
	x, y := d.scale(el.Data.X, el.Data.Y)

	s.Save()
	s.SetSourceRGBA(0, 0, 0, 0.7*alpha)
	s.Rectangle(0, y, d.w, 0.05*d.h)
	s.Fill()
	s.SetSourceRGBA(1, 1, 1, alpha)
	s.SelectFontFace("sans-serif", cairo.FONT_SLANT_NORMAL, cairo.FONT_WEIGHT_NORMAL)
	s.SetFontSize(0.025 * d.h)
	s.MoveTo(x, y+0.035*d.h)
	s.ShowText(el.Data.Text)
	s.Restore()
}

func drawTimer(s *cairo.Surface, el Element, alpha float64, d dims) {
	x, y := d.scale(el.Data.X, el.Data.Y)

	s.Save()
	s.SetSourceRGBA(1, 1, 1, alpha)
	s.SelectFontFace("monospace", cairo.FONT_SLANT_NORMAL, cairo.FONT_WEIGHT_BOLD)
	s.SetFontSize(0.05 * d.h)
	s.MoveTo(x, y)
	s.ShowText(el.Data.TimerLabel)
	s.Restore()
}

func drawLogo(s *cairo.Surface, el Element, alpha float64, d dims) {
	img := cairo.NewSurfaceFromPNG(el.Data.LogoPath)
	if img == nil {
		return
	}
	defer img.Destroy()

	x, y := d.scale(el.Data.X, el.Data.Y)

	s.Save()
	s.SetSourceSurface(img, x, y)
	s.PaintWithAlpha(alpha)
	s.Restore()
}

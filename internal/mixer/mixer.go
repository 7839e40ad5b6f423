// Package mixer implements the Mixer Core: one composition pipeline
// that subscribes to multiple media-server-published streams plus the
// Reveal graphics outputs and republishes a single H.264 program
// stream under a fixed path. The pipeline's source set is the union of
// every source the current and preview scenes reference (the
// "superset"); placement changes within that set are compositor
// pad-property updates, never a rebuild. Only referencing a source
// outside the superset forces one.
package mixer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/config"
	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/graphics/overlay"
	"github.com/stagebus/stagebus/internal/graphics/reveal"
	"github.com/stagebus/stagebus/internal/gst"
	"github.com/stagebus/stagebus/internal/pipeline"
	"github.com/stagebus/stagebus/internal/scene"
)

const (
	overlayAppSrcName = "mixeroverlay"
	overlayFramerate  = 30
	healthTimeout     = 5 * time.Second
	mixDuration       = 500 * time.Millisecond
	autoDuration      = 1 * time.Second
	crossfadeStepRate = 30 // steps/sec, matches the overlay/compositor framerate
)

// Transition names a take() promotion style.
type Transition string

const (
	TransitionCut  Transition = "cut"
	TransitionMix  Transition = "mix"
	TransitionAuto Transition = "auto"
)

// State is the Mixer's coarse lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StatePlaying  State = "playing"
	StateStopping State = "stopping"
)

// Status is a snapshot of the Mixer returned by Status().
type Status struct {
	State         State
	ProgramScene  string
	PreviewScene  string
	Healthy       bool
	LastError     string
	FellBackToCut bool
}

// ingestGate is the slice of internal/ingest.Manager the Mixer needs:
// whether a camera is currently publishing.
type ingestGate interface {
	IsStreaming(cameraID string) bool
}

// Manager owns the single program pipeline and the current/preview
// scene pointers. One lock protects all mutable fields; the crossfade
// loop in take() releases it between ticks so status() never blocks on
// an in-flight transition.
type Manager struct {
	cfg      config.MixerConfig
	platform pipeline.Platform
	ingest   ingestGate
	reveal   *reveal.Manager
	scenes   *scene.Store
	overlay  *overlay.Manager
	log      zerolog.Logger

	mu            sync.Mutex
	state         State
	pipe          *gst.Pipeline
	sourcePad     map[string]int // "camera:<id>" / "reveal:<id>" -> stable sink_<N> pad index
	programScene  string
	previewScene  string
	lastError     string
	fellBackToCut bool
	lastBufferAt  time.Time
	lastPTS       time.Duration
	overlayCancel context.CancelFunc
}

// New constructs a Manager. overlayMgr is sized to cfg's output
// resolution by the caller before being passed in.
func New(cfg config.MixerConfig, platform pipeline.Platform, ingest ingestGate, revealMgr *reveal.Manager, scenes *scene.Store, overlayMgr *overlay.Manager, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		platform: platform,
		ingest:   ingest,
		reveal:   revealMgr,
		scenes:   scenes,
		overlay:  overlayMgr,
		log:      log,
		state:    StateIdle,
	}
}

func cameraKey(id string) string { return "camera:" + id }
func revealKey(id string) string { return "reveal:" + id }

// slotKey returns the superset key for a slot, or "" for an overlay
// slot (the Cairo layer is not a media-server source and never gets
// its own compositor pad).
func slotKey(slot scene.Slot) string {
	switch slot.Kind {
	case scene.SourceCamera:
		return cameraKey(slot.Source)
	case scene.SourceReveal:
		return revealKey(slot.Source)
	default:
		return ""
	}
}

// resolveSlot returns the media-server stream path and liveness for a
// non-overlay slot.
func (m *Manager) resolveSlot(slot scene.Slot) (streamPath string, live bool) {
	switch slot.Kind {
	case scene.SourceCamera:
		return slot.Source, m.ingest.IsStreaming(slot.Source)
	case scene.SourceReveal:
		for _, st := range m.reveal.Status() {
			if string(st.ID) == slot.Source {
				return st.MediaServerPath, st.State == reveal.StateRunning
			}
		}
		return "", false
	default:
		return "", true
	}
}

// validateScene checks that every non-overlay source a scene
// references is currently live, returning a structured error naming
// every missing source if not.
func (m *Manager) validateScene(sc scene.Scene) error {
	var missing []string
	for _, slot := range sc.Slots {
		if slot.Kind == scene.SourceOverlay {
			continue
		}
		if _, live := m.resolveSlot(slot); !live {
			missing = append(missing, string(slot.Kind)+":"+slot.Source)
		}
	}
	if len(missing) > 0 {
		return errs.Newf(errs.KindInvalidRequest, "scene %s references unavailable sources", sc.ID).WithDetails(missing...)
	}
	return nil
}

// superset computes the union of non-overlay sources referenced by
// scenes, in deterministic (sorted-key) order, assigning each a pad
// index.
func superset(scenes ...scene.Scene) (keys []string, paths map[string]string) {
	paths = make(map[string]string)
	for _, sc := range scenes {
		for _, slot := range sc.Slots {
			key := slotKey(slot)
			if key == "" {
				continue
			}
			if _, ok := paths[key]; !ok {
				paths[key] = slot.Source
			}
		}
	}
	keys = make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, paths
}

// Start builds the program pipeline for an initial scene and begins
// playback. Starting a Mixer that is already playing the same scene is
// a no-op; any other Start while the Mixer is not idle is an error;
// Stop first.
func (m *Manager) Start(ctx context.Context, sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StatePlaying && m.programScene == sceneID {
		return nil
	}
	if m.state != StateIdle {
		return errs.Newf(errs.KindInvalidRequest, "mixer already running scene %q, stop first", m.programScene)
	}

	sc, ok := m.scenes.Get(sceneID)
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "unknown scene %q", sceneID)
	}
	if err := m.validateScene(sc); err != nil {
		return err
	}

	m.state = StateStarting

	keys, paths := superset(sc)
	if err := m.rebuildLocked(ctx, keys, paths); err != nil {
		m.state = StateIdle
		return err
	}
	m.applySceneLocked(sc, 1.0)

	m.programScene = sceneID
	m.previewScene = ""
	m.fellBackToCut = false
	m.state = StatePlaying
	m.lastBufferAt = time.Now()
	return nil
}

// rebuildLocked tears down any existing pipeline and builds a fresh
// one for the given superset. Called with the lock held.
func (m *Manager) rebuildLocked(ctx context.Context, keys []string, paths map[string]string) error {
	m.teardownLocked()

	sources := make([]pipeline.MixerSource, 0, len(keys))
	for i, k := range keys {
		sources = append(sources, pipeline.MixerSource{StreamPath: paths[k], PadIndex: i})
	}

	desc, err := pipeline.BuildMixerProgram(sources, overlayAppSrcName, pipeline.MixerOutput{
		Width:       m.cfg.OutputWidth,
		Height:      m.cfg.OutputHeight,
		Framerate:   overlayFramerate,
		BitrateKbps: m.cfg.OutputBitrateKbps,
		StreamPath:  "mixer_program",
	}, m.platform)
	if err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "building mixer program pipeline", err)
	}

	pipe, err := gst.New(desc)
	if err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "parsing mixer program pipeline", err)
	}
	if err := pipe.Start(ctx); err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "starting mixer program pipeline", err)
	}

	pad := make(map[string]int, len(keys))
	for i, k := range keys {
		pad[k] = i
	}

	m.pipe = pipe
	m.sourcePad = pad

	go m.drainBus(pipe)

	overlayCtx, cancel := context.WithCancel(context.Background())
	m.overlayCancel = cancel
	go m.overlayLoop(overlayCtx, pipe)

	return nil
}

func (m *Manager) teardownLocked() {
	if m.overlayCancel != nil {
		m.overlayCancel()
		m.overlayCancel = nil
	}
	if m.pipe != nil {
		m.pipe.Stop()
		m.pipe = nil
	}
	m.sourcePad = nil
}

func (m *Manager) drainBus(pipe *gst.Pipeline) {
	for ev := range pipe.Bus() {
		if ev.Kind == gst.BusEventError {
			m.mu.Lock()
			m.lastError = ev.Message
			m.mu.Unlock()
			m.log.Error().Str("message", ev.Message).Msg("mixer program pipeline error")
		}
	}
}

// overlayLoop draws the Cairo overlay layer at a fixed framerate and
// pushes it into the program pipeline's dedicated overlay appsrc,
// doubling as the health heartbeat: every successful push updates
// lastBufferAt.
func (m *Manager) overlayLoop(ctx context.Context, pipe *gst.Pipeline) {
	interval := time.Second / overlayFramerate
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pts time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := m.overlay.Draw(pts)
			if err := pipe.PushBuffer(overlayAppSrcName, frame, pts); err != nil {
				m.log.Warn().Err(err).Msg("mixer overlay push failed")
			} else {
				m.mu.Lock()
				m.lastBufferAt = time.Now()
				m.lastPTS = pts
				m.mu.Unlock()
			}
			pts += interval
		}
	}
}

// applySceneLocked sets every superset pad's placement to sc's slots
// (scaled alpha applied on top of each slot's own alpha, for
// crossfading) and hides every other superset pad. Called with the
// lock held.
func (m *Manager) applySceneLocked(sc scene.Scene, alphaScale float64) {
	wanted := make(map[string]scene.Slot, len(sc.Slots))
	for _, slot := range sc.Slots {
		key := slotKey(slot)
		if key == "" {
			continue
		}
		wanted[key] = slot
	}

	for key, idx := range m.sourcePad {
		padName := fmt.Sprintf("sink_%d", idx)
		slot, visible := wanted[key]
		if !visible {
			_ = m.pipe.SetPadProperty("mix", padName, "alpha", 0.0)
			continue
		}
		m.setPadPlacementLocked(padName, slot, alphaScale)
	}
}

// SetScene stages sceneID as the preview, growing the superset (and so
// rebuilding the pipeline) if it references a source not already
// subscribed. The currently-visible program scene's placement is
// unaffected.
func (m *Manager) SetScene(ctx context.Context, sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePlaying {
		return errs.Newf(errs.KindInvalidRequest, "mixer is not playing (state %q)", m.state)
	}

	sc, ok := m.scenes.Get(sceneID)
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "unknown scene %q", sceneID)
	}
	if err := m.validateScene(sc); err != nil {
		return err
	}

	if m.needsRebuildLocked(sc) {
		programSc, _ := m.scenes.Get(m.programScene)
		keys, paths := superset(programSc, sc)
		if err := m.rebuildLocked(ctx, keys, paths); err != nil {
			return err
		}
		m.applySceneLocked(programSc, 1.0)
	}

	m.previewScene = sceneID
	return nil
}

func (m *Manager) needsRebuildLocked(sc scene.Scene) bool {
	for _, slot := range sc.Slots {
		key := slotKey(slot)
		if key == "" {
			continue
		}
		if _, ok := m.sourcePad[key]; !ok {
			return true
		}
	}
	return false
}

// Take promotes the staged preview scene to program via transition.
func (m *Manager) Take(ctx context.Context, transition Transition) error {
	m.mu.Lock()
	if m.state != StatePlaying {
		m.mu.Unlock()
		return errs.Newf(errs.KindInvalidRequest, "mixer is not playing (state %q)", m.state)
	}
	if m.previewScene == "" {
		m.mu.Unlock()
		return errs.New(errs.KindInvalidRequest, "no scene staged for preview")
	}

	sc, ok := m.scenes.Get(m.previewScene)
	if !ok {
		m.mu.Unlock()
		return errs.Newf(errs.KindInvalidRequest, "unknown scene %q", m.previewScene)
	}

	if m.needsRebuildLocked(sc) {
		// Another client changed the scene set since SetScene validated
		// it; fall back to an instant cut plus rebuild rather than
		// attempting to crossfade against a pipeline that doesn't yet
		// carry the target's sources.
		keys, paths := superset(sc)
		if err := m.rebuildLocked(ctx, keys, paths); err != nil {
			m.mu.Unlock()
			return err
		}
		m.applySceneLocked(sc, 1.0)
		m.fellBackToCut = true
		m.programScene = m.previewScene
		m.previewScene = ""
		m.mu.Unlock()
		return nil
	}

	oldScene, _ := m.scenes.Get(m.programScene)
	pipe := m.pipe
	m.fellBackToCut = false
	m.mu.Unlock()

	switch transition {
	case TransitionCut, "":
		m.mu.Lock()
		m.applySceneLocked(sc, 1.0)
		m.programScene = m.previewScene
		m.previewScene = ""
		m.mu.Unlock()
		return nil
	case TransitionMix:
		m.crossfade(pipe, oldScene, sc, mixDuration)
	case TransitionAuto:
		m.crossfade(pipe, oldScene, sc, autoDuration)
	default:
		return errs.Newf(errs.KindInvalidRequest, "unknown transition %q", transition)
	}

	m.mu.Lock()
	m.programScene = m.previewScene
	m.previewScene = ""
	m.mu.Unlock()
	return nil
}

// crossfade ramps alpha from oldScene's placement to newScene's over
// duration, lock-free between ticks so Status() never blocks on an
// in-flight transition. newScene's placement (position/size/zorder) is
// set immediately; only alpha animates, which is what makes this a
// crossfade rather than a cut with a fade.
func (m *Manager) crossfade(pipe *gst.Pipeline, oldScene, newScene scene.Scene, duration time.Duration) {
	steps := int(duration.Seconds() * crossfadeStepRate)
	if steps < 1 {
		steps = 1
	}
	stepInterval := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		progress := float64(i) / float64(steps)

		m.mu.Lock()
		if m.pipe != pipe {
			// Pipeline was rebuilt out from under this crossfade (e.g. a
			// concurrent Stop); abandon rather than touch a dead pipeline.
			m.mu.Unlock()
			return
		}
		m.crossfadeStepLocked(oldScene, newScene, progress)
		m.mu.Unlock()

		time.Sleep(stepInterval)
	}
}

// crossfadeStepLocked sets every superset pad's alpha for one
// crossfade tick: pads the new scene wants ramp in at progress, pads
// only the old scene wants ramp out at 1-progress, everything else
// stays hidden. Called with the lock held.
func (m *Manager) crossfadeStepLocked(oldScene, newScene scene.Scene, progress float64) {
	oldWanted := make(map[string]scene.Slot, len(oldScene.Slots))
	for _, slot := range oldScene.Slots {
		if key := slotKey(slot); key != "" {
			oldWanted[key] = slot
		}
	}
	newWanted := make(map[string]scene.Slot, len(newScene.Slots))
	for _, slot := range newScene.Slots {
		if key := slotKey(slot); key != "" {
			newWanted[key] = slot
		}
	}

	for key, idx := range m.sourcePad {
		padName := fmt.Sprintf("sink_%d", idx)
		if slot, ok := newWanted[key]; ok {
			m.setPadPlacementLocked(padName, slot, progress)
			continue
		}
		if slot, ok := oldWanted[key]; ok {
			m.setPadPlacementLocked(padName, slot, 1-progress)
			continue
		}
		_ = m.pipe.SetPadProperty("mix", padName, "alpha", 0.0)
	}
}

func (m *Manager) setPadPlacementLocked(padName string, slot scene.Slot, alphaScale float64) {
	_ = m.pipe.SetPadProperty("mix", padName, "xpos", int(slot.X*float64(m.cfg.OutputWidth)))
	_ = m.pipe.SetPadProperty("mix", padName, "ypos", int(slot.Y*float64(m.cfg.OutputHeight)))
	_ = m.pipe.SetPadProperty("mix", padName, "width", int(slot.W*float64(m.cfg.OutputWidth)))
	_ = m.pipe.SetPadProperty("mix", padName, "height", int(slot.H*float64(m.cfg.OutputHeight)))
	_ = m.pipe.SetPadProperty("mix", padName, "zorder", uint(slot.Z))
	_ = m.pipe.SetPadProperty("mix", padName, "alpha", slot.Alpha*alphaScale)
}

// Stop tears down the program pipeline.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateIdle {
		return
	}
	m.state = StateStopping
	m.teardownLocked()
	m.programScene = ""
	m.previewScene = ""
	m.state = StateIdle
}

// ShowOverlay begins id's show animation, timed from the overlay
// loop's own current presentation timestamp rather than wall time —
// the Mixer is the only thing that knows what pts the next drawn frame
// will actually carry.
func (m *Manager) ShowOverlay(id string) error {
	m.mu.Lock()
	pts := m.lastPTS
	m.mu.Unlock()
	return m.overlay.Show(id, pts)
}

// HideOverlay begins id's hide animation, same pts source as ShowOverlay.
func (m *Manager) HideOverlay(id string) error {
	m.mu.Lock()
	pts := m.lastPTS
	m.mu.Unlock()
	return m.overlay.Hide(id, pts)
}

// Status returns a snapshot of the Mixer's current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	healthy := m.state != StatePlaying || time.Since(m.lastBufferAt) < healthTimeout
	return Status{
		State:         m.state,
		ProgramScene:  m.programScene,
		PreviewScene:  m.previewScene,
		Healthy:       healthy,
		LastError:     m.lastError,
		FellBackToCut: m.fellBackToCut,
	}
}

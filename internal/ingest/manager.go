// Package ingest implements the Ingest Manager: the always-on
// supervisor that owns each enabled capture device exclusively,
// builds and monitors one hardware-encoded publish pipeline per
// camera, and restarts pipelines safely on signal loss, resolution
// drift or runtime staleness.
//
// Each camera's state lives behind its own lock, and status reads
// copy out rather than share pointers, so callers never observe a
// torn write. The health loop is a gocron job per camera, added at
// start and removed at stop, so a stopped camera provably has no
// scheduled probes.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/gst"
	"github.com/stagebus/stagebus/internal/mediaserver"
	"github.com/stagebus/stagebus/internal/pipeline"
	"github.com/stagebus/stagebus/internal/prober"
)

const (
	healthCadence        = 10 * time.Second
	probeTimeout         = 2 * time.Second
	signalLossCycles     = 2
	stalenessThreshold   = 15 * time.Second
	maxRestartAttempts   = 5
	resolutionDriftRatio = 0.02 // >2% change in either dimension forces a rebuild
)

// entry is the per-camera supervised state. Every field except spec
// and lastFrameAt is protected by mu; spec is immutable after
// construction. lastFrameAt is its own atomic because it's updated
// from the GStreamer streaming thread (the liveness pad probe, see
// buildAndStartLocked) on every buffer, which would otherwise contend
// with mu against the health-tick goroutine on every single frame.
type entry struct {
	mu sync.Mutex

	spec  camera.Spec
	state camera.State

	pipeline     *gst.Pipeline
	cancel       context.CancelFunc
	jobID        gocron.JobID
	missedProbes int

	lastFrameAt atomic.Int64 // unix nano; stamped at pipeline start, then on each buffer; 0 means never started
}

// Manager owns the lifecycle of one publish pipeline per enabled
// camera.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry

	scheduler gocron.Scheduler
	gateway   *mediaserver.Gateway
	platform  pipeline.Platform
	log       zerolog.Logger
}

// New constructs a Manager for the given enabled cameras. Disabled
// cameras passed here are a programmer error — callers should only
// pass config.Document.EnabledCameras().
func New(specs []camera.Spec, gateway *mediaserver.Gateway, platform pipeline.Platform, log zerolog.Logger) (*Manager, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("ingest: creating scheduler: %w", err)
	}

	m := &Manager{
		entries:   make(map[string]*entry, len(specs)),
		scheduler: sched,
		gateway:   gateway,
		platform:  platform,
		log:       log,
	}

	for _, s := range specs {
		if !s.Enabled {
			continue
		}
		m.entries[s.ID] = &entry{spec: s, state: camera.State{ID: s.ID, Status: camera.StatusIdle}}
	}

	sched.Start()
	return m, nil
}

// StartAll starts every enabled camera's pipeline.
func (m *Manager) StartAll(ctx context.Context) map[string]error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(ids))
	for _, id := range ids {
		results[id] = m.Start(ctx, id)
	}
	return results
}

// StopAll stops every camera's pipeline.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.Stop(ctx, id)
	}
}

// Start begins (or, if already streaming, is a no-op for) one
// camera's pipeline and schedules its health loop. Idempotent: calling
// Start twice behaves as a single Start.
func (m *Manager) Start(ctx context.Context, id string) error {
	e, ok := m.lookup(id)
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "unknown camera %q", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Status == camera.StatusStreaming || e.state.Status == camera.StatusStarting {
		return nil
	}

	e.state.Status = camera.StatusStarting
	if err := m.buildAndStartLocked(ctx, e); err != nil {
		e.state.Status = camera.StatusError
		e.state.LastError = err.Error()
		return err
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	job, err := m.scheduler.NewJob(
		gocron.DurationJob(healthCadence),
		gocron.NewTask(func() { m.healthTick(jobCtx, id) }),
	)
	if err != nil {
		cancel()
		return fmt.Errorf("ingest: scheduling health loop for %s: %w", id, err)
	}
	e.jobID = job.ID()

	return nil
}

// Stop tears down one camera's pipeline and removes its health-loop
// schedule entry, so a stopped or never-started camera is never
// probed (satisfying the disabled/stopped-camera invariant).
func (m *Manager) Stop(ctx context.Context, id string) error {
	e, ok := m.lookup(id)
	if !ok {
		return errs.Newf(errs.KindInvalidRequest, "unknown camera %q", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.jobID != (gocron.JobID{}) {
		_ = m.scheduler.RemoveJob(e.jobID)
	}
	if e.pipeline != nil {
		e.pipeline.Stop()
		e.pipeline = nil
	}
	e.state.Status = camera.StatusIdle
	return nil
}

// Shutdown cancels all health loops and stops all pipelines, for
// process shutdown. Each health loop finishes its current iteration,
// then exits.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.StopAll(ctx)
	return m.scheduler.Shutdown()
}

// IsStreaming is the predicate the Recording Subscriber gates on.
func (m *Manager) IsStreaming(id string) bool {
	e, ok := m.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Status == camera.StatusStreaming
}

// Status returns a consistent snapshot per camera — a copy, never a
// shared pointer, so callers can't observe a torn write.
func (m *Manager) Status() map[string]camera.State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]camera.State, len(m.entries))
	for id, e := range m.entries {
		e.mu.Lock()
		out[id] = e.state.Snapshot()
		e.mu.Unlock()
	}
	return out
}

func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// buildAndStartLocked constructs and starts the pipeline for e. Caller
// must hold e.mu. Encoder construction failure is fatal for this
// camera only — it does not touch other cameras' state.
func (m *Manager) buildAndStartLocked(ctx context.Context, e *entry) error {
	width, height := e.spec.Width, e.spec.Height

	desc, err := pipeline.Build(pipeline.Input{
		Role:        pipeline.RoleIngestPublish,
		Device:      e.spec.Device,
		Width:       width,
		Height:      height,
		Framerate:   e.spec.Framerate,
		BitrateKbps: e.spec.BitrateKbps,
		StreamPath:  e.spec.ID,
	}, m.platform)
	if err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "building ingest pipeline for "+e.spec.ID, err)
	}

	p, err := gst.New(desc)
	if err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "parsing ingest pipeline for "+e.spec.ID, err)
	}
	if err := p.Start(ctx); err != nil {
		return errs.Wrap(errs.KindPipelineConstruct, "starting ingest pipeline for "+e.spec.ID, err)
	}

	e.pipeline = p
	e.state.Status = camera.StatusStreaming
	e.state.LastWidth = width
	e.state.LastHeight = height
	e.state.LastError = ""
	e.lastFrameAt.Store(time.Now().UnixNano())

	if err := p.WatchBufferFlow(pipeline.LivenessElementName, func() {
		e.lastFrameAt.Store(time.Now().UnixNano())
	}); err != nil {
		m.log.Warn().Str("camera", e.spec.ID).Err(err).
			Msg("liveness probe unavailable, falling back to the start-time stamp for staleness detection")
	}

	go m.drainBus(e.spec.ID, p)

	return nil
}

// drainBus watches a pipeline's bus for errors after startup; runtime
// errors are handled on the next health tick rather than here, to keep
// all state mutation on the single-threaded health path plus the
// explicit per-camera lock.
func (m *Manager) drainBus(id string, p *gst.Pipeline) {
	for ev := range p.Bus() {
		if ev.Kind == gst.BusEventError {
			m.log.Warn().Str("camera", id).Str("error", ev.Message).Msg("ingest pipeline reported error")
		}
	}
}

// healthTick runs one health-loop iteration for camera id: probe
// signal, detect resolution drift, detect staleness, and rebuild as
// needed with bounded exponential backoff.
func (m *Manager) healthTick(ctx context.Context, id string) {
	e, ok := m.lookup(id)
	if !ok {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	res := prober.Probe(ctx, e.spec.Device, probeTimeout)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.LastProbeAt = time.Now()

	if !res.HasSignal {
		e.missedProbes++
		if e.missedProbes >= signalLossCycles {
			m.log.Info().Str("camera", id).Msg("signal lost for two consecutive cycles, tearing down")
			m.teardownLocked(e)
			e.state.Status = camera.StatusNoSignal
		}
		return
	}
	e.missedProbes = 0

	driftedWidth := materialDrift(res.Width, e.state.LastWidth)
	driftedHeight := materialDrift(res.Height, e.state.LastHeight)
	if e.state.Status == camera.StatusStreaming && (driftedWidth || driftedHeight) {
		m.log.Info().Str("camera", id).
			Int("old_w", e.state.LastWidth).Int("old_h", e.state.LastHeight).
			Int("new_w", res.Width).Int("new_h", res.Height).
			Msg("resolution drift detected, rebuilding pipeline")
		m.rebuildLocked(ctx, e)
		return
	}

	if e.state.Status == camera.StatusStreaming && m.isStaleLocked(e) {
		m.log.Warn().Str("camera", id).Msg("pipeline stale, rebuilding with backoff")
		m.rebuildLocked(ctx, e)
		return
	}

	if e.state.Status != camera.StatusStreaming && e.state.Status != camera.StatusError {
		// Signal is back after a no_signal episode; restart plainly (not a backoff rebuild).
		if err := m.buildAndStartLocked(ctx, e); err != nil {
			e.state.Status = camera.StatusError
			e.state.LastError = err.Error()
		} else {
			e.state.RestartAttempts = 0
		}
	}
}

// isStaleLocked reports whether e's pipeline has gone quiet: either
// lastFrameAt was never stamped, or the last stamp (the pipeline start
// or the latest buffer) is older than stalenessThreshold. After the
// start stamp, lastFrameAt is driven by a pad probe on the pipeline's
// real output (internal/gst.Pipeline.WatchBufferFlow), not by a local
// appsink — ingest-publish has none — so this reflects actual frame
// flow rather than process liveness.
func (m *Manager) isStaleLocked(e *entry) bool {
	if e.pipeline == nil {
		return true
	}
	last := e.lastFrameAt.Load()
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) > stalenessThreshold
}

func (m *Manager) teardownLocked(e *entry) {
	if e.pipeline != nil {
		e.pipeline.Stop()
		e.pipeline = nil
	}
}

// rebuildLocked tears down and reconstructs e's pipeline with bounded
// retries and exponential backoff. Caller holds e.mu.
func (m *Manager) rebuildLocked(ctx context.Context, e *entry) {
	m.teardownLocked(e)

	err := retry.Do(
		func() error { return m.buildAndStartLocked(ctx, e) },
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		e.state.RestartAttempts++
		e.state.LastError = err.Error()
		if e.state.RestartAttempts >= maxRestartAttempts {
			e.state.Status = camera.StatusError
			m.log.Error().Str("camera", e.spec.ID).Int("attempts", e.state.RestartAttempts).
				Msg("restart attempts exhausted, surfacing error")
		}
		return
	}
	e.state.RestartAttempts = 0
}

func materialDrift(probed, current int) bool {
	if current == 0 {
		return probed != 0
	}
	if probed == 0 {
		return false // treat a failed-to-resolve probe as "unchanged", not drift
	}
	delta := probed - current
	if delta < 0 {
		delta = -delta
	}
	return float64(delta)/float64(current) > resolutionDriftRatio
}

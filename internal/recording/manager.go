package recording

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/diskspace"
	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/gst"
	"github.com/stagebus/stagebus/internal/pipeline"
)

// ingestGate is the subset of the Ingest Manager the Recording
// Subscriber depends on — just enough to gate starts, never enough to
// touch a device.
type ingestGate interface {
	IsStreaming(camID string) bool
}

// Config is the recording surface of the configuration document.
type Config struct {
	RecordingsRoot        string
	SessionsDir           string
	Fragmented            bool
	FragmentDurationMs    int
	MinDiskSpaceBytes     uint64
	WarningDiskSpaceBytes uint64
}

type camEntry struct {
	mu       sync.Mutex
	status   CameraStatus
	file     string
	pipeline *gst.Pipeline
}

// Manager is the Recording Subscriber. It owns zero or one active
// session at a time; per-camera state inside that session is locked
// independently so one camera's finalize failure never blocks another's.
type Manager struct {
	cfg    Config
	ingest ingestGate
	guard  diskspace.Guard
	log    zerolog.Logger

	mu        sync.Mutex // protects session + cameras + diskCancel
	session   *Session
	cameras   map[string]*camEntry
	diskCancel context.CancelFunc
	degraded  bool
}

// New constructs a Manager. StartAll's specs need not be filtered to
// enabled — StartAll skips disabled specs and consults
// ingest.IsStreaming for the rest.
func New(cfg Config, ingest ingestGate, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		ingest: ingest,
		guard:  diskspace.Guard{MinBytes: cfg.MinDiskSpaceBytes, WarningBytes: cfg.WarningDiskSpaceBytes},
		log:    log,
	}
}

// StartAll begins a new recording session for every enabled+streaming
// camera in specs. Cameras that are not currently streaming are
// reported "failed" for this call, not an error — other cameras still
// start. Returns the new session id.
func (m *Manager) StartAll(ctx context.Context, specs []camera.Spec) (string, map[string]error, error) {
	m.mu.Lock()
	if m.session != nil {
		sid := m.session.SessionID
		m.mu.Unlock()
		return sid, nil, nil // a second StartAll while one session is active is a no-op
	}
	m.mu.Unlock()

	info, err := diskspace.Stat(m.cfg.RecordingsRoot)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindDiskExhausted, "statting recordings root", err)
	}
	if m.guard.Evaluate(info) == diskspace.LevelExhausted {
		return "", nil, errs.New(errs.KindDiskExhausted, "insufficient disk space to start a recording session")
	}

	sessionID := newSessionID(time.Now())
	sess := &Session{SessionID: sessionID, StartISO: time.Now().UTC().Format(time.RFC3339)}
	cameras := make(map[string]*camEntry, len(specs))

	results := make(map[string]error, len(specs))
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		outcome, entry, startErr := m.startOneLocked(ctx, spec, sessionID)
		sess.Cameras = append(sess.Cameras, outcome)
		if entry != nil {
			cameras[spec.ID] = entry
		}
		results[spec.ID] = startErr
	}

	m.mu.Lock()
	m.session = sess
	m.cameras = cameras
	m.degraded = false
	diskCtx, cancel := context.WithCancel(context.Background())
	m.diskCancel = cancel
	m.mu.Unlock()

	go m.diskSampler(diskCtx)

	return sessionID, results, nil
}

func (m *Manager) startOneLocked(ctx context.Context, spec camera.Spec, sessionID string) (CameraOutcome, *camEntry, error) {
	if !m.ingest.IsStreaming(spec.ID) {
		return CameraOutcome{CameraID: spec.ID, Status: CameraFailed}, nil, errs.Newf(errs.KindInvalidRequest, "camera %s is not streaming", spec.ID)
	}

	file := outputPath(m.cfg.RecordingsRoot, spec.ID, sessionID)
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return CameraOutcome{CameraID: spec.ID, Status: CameraFailed}, nil, fmt.Errorf("recording: creating output dir for %s: %w", spec.ID, err)
	}

	desc, err := pipeline.Build(pipeline.Input{
		Role:       pipeline.RoleRecordSubscribe,
		StreamPath: spec.ID,
		OutputPath: file,
		Fragmented: m.cfg.Fragmented,
	}, pipeline.Platform{})
	if err != nil {
		return CameraOutcome{CameraID: spec.ID, File: file, Status: CameraFailed}, nil, errs.Wrap(errs.KindPipelineConstruct, "building record pipeline for "+spec.ID, err)
	}

	p, err := gst.New(desc)
	if err != nil {
		return CameraOutcome{CameraID: spec.ID, File: file, Status: CameraFailed}, nil, errs.Wrap(errs.KindPipelineConstruct, "parsing record pipeline for "+spec.ID, err)
	}
	if err := p.Start(ctx); err != nil {
		return CameraOutcome{CameraID: spec.ID, File: file, Status: CameraFailed}, nil, errs.Wrap(errs.KindPipelineConstruct, "starting record pipeline for "+spec.ID, err)
	}

	return CameraOutcome{CameraID: spec.ID, File: file, Status: CameraRecording}, &camEntry{status: CameraRecording, file: file, pipeline: p}, nil
}

// StopAll finalizes every active recording in ordered fashion: stop
// flag set (implicit, since StopAll is the only caller of teardown),
// EOS, bounded wait, then the session JSON is written. Idempotent:
// calling StopAll with no active session is a no-op.
func (m *Manager) StopAll(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	sess := m.session
	cameras := m.cameras
	cancel := m.diskCancel
	degraded := m.degraded
	m.mu.Unlock()

	if sess == nil {
		return nil, nil
	}
	if cancel != nil {
		cancel()
	}

	for i, outcome := range sess.Cameras {
		entry, ok := cameras[outcome.CameraID]
		if !ok {
			continue // already marked failed at start
		}
		entry.mu.Lock()
		entry.pipeline.Stop()
		status := CameraCompleted
		if degraded {
			status = CameraFailed
		}
		entry.status = status
		sess.Cameras[i].Status = status
		entry.mu.Unlock()
	}

	sess.EndISO = time.Now().UTC().Format(time.RFC3339)

	if err := m.writeSessionFile(sess); err != nil {
		m.log.Error().Err(err).Str("session", sess.SessionID).Msg("failed to persist session metadata")
	}

	m.mu.Lock()
	m.session = nil
	m.cameras = nil
	m.diskCancel = nil
	m.mu.Unlock()

	return sess, nil
}

// writeSessionFile persists sess as JSON, writing to a temp file and
// renaming into place so readers never observe a partially-written file.
func (m *Manager) writeSessionFile(sess *Session) error {
	if err := os.MkdirAll(m.cfg.SessionsDir, 0o755); err != nil {
		return err
	}
	final := filepath.Join(m.cfg.SessionsDir, sess.SessionID+".json")
	tmp := final + ".tmp"

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// CurrentSession returns a copy of the in-progress session, or nil if
// none is active.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	cp := *m.session
	cp.Cameras = append([]CameraOutcome(nil), m.session.Cameras...)
	return &cp
}

// Status reports the per-camera recording status of the active session.
func (m *Manager) Status() map[string]CameraStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]CameraStatus, len(m.cameras))
	for id, e := range m.cameras {
		e.mu.Lock()
		out[id] = e.status
		e.mu.Unlock()
	}
	return out
}

const diskSampleInterval = 5 * time.Second

// diskSampler periodically checks free disk space while a session is
// active. Crossing the warning threshold is logged; crossing the hard
// minimum triggers StopAll and marks the session degraded: every camera
// recording at that moment is persisted as "failed".
func (m *Manager) diskSampler(ctx context.Context) {
	ticker := time.NewTicker(diskSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := diskspace.Stat(m.cfg.RecordingsRoot)
			if err != nil {
				m.log.Warn().Err(err).Msg("disk space sample failed")
				continue
			}
			switch m.guard.Evaluate(info) {
			case diskspace.LevelWarning:
				m.log.Warn().Str("space", info.String()).Msg("recording disk space warning threshold crossed")
			case diskspace.LevelExhausted:
				m.log.Error().Str("space", info.String()).Msg("recording disk space exhausted, stopping session")
				m.mu.Lock()
				m.degraded = true
				m.mu.Unlock()
				go func() { _, _ = m.StopAll(context.Background()) }()
				return
			}
		}
	}
}

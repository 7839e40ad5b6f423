// Package mode implements the Mode Manager: a process-wide state
// machine that arbitrates between mutually exclusive operational
// modes sharing the same capture devices. Transitions always stop the
// outgoing side to completion before starting the incoming side, and
// only persist the new mode once both steps succeed.
package mode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/fleetbus"
	"github.com/stagebus/stagebus/internal/procsup"
)

// Mode is the tagged operating mode.
type Mode string

const (
	ModeRecorder     Mode = "recorder"
	ModeVDOPublisher Mode = "vdo_publisher"
)

// vdoPublisherBinary is the external per-camera publisher service
// launched in vdo_publisher mode, one instance per enabled camera.
const vdoPublisherBinary = "/usr/local/bin/vdo_publisher"

// ingestControl is the subset of the Ingest Manager the Mode Manager
// drives directly.
type ingestControl interface {
	StartAll(ctx context.Context) map[string]error
	StopAll(ctx context.Context)
}

// Status is a snapshot of the mode manager's current state.
type Status struct {
	Mode      Mode   `json:"mode"`
	LastError string `json:"last_error,omitempty"`
}

type stateFile struct {
	Mode Mode `json:"mode"`
}

// Manager owns mode transitions.
type Manager struct {
	mu        sync.Mutex
	mode      Mode
	lastError string

	ingest    ingestControl
	procs     *procsup.Supervisor
	bus       *fleetbus.Bus
	specs     []camera.Spec
	statePath string
	log       zerolog.Logger
}

// New constructs a Manager, reading statePath if present, falling
// back to defaultMode on any read failure (absent file, corrupt
// contents).
func New(statePath string, defaultMode Mode, specs []camera.Spec, ingest ingestControl, procs *procsup.Supervisor, bus *fleetbus.Bus, log zerolog.Logger) *Manager {
	m := &Manager{
		mode:      defaultMode,
		ingest:    ingest,
		procs:     procs,
		bus:       bus,
		specs:     specs,
		statePath: statePath,
		log:       log,
	}

	if data, err := os.ReadFile(statePath); err == nil {
		var sf stateFile
		if err := json.Unmarshal(data, &sf); err == nil && (sf.Mode == ModeRecorder || sf.Mode == ModeVDOPublisher) {
			m.mode = sf.Mode
		}
	}

	return m
}

// Start begins whichever side the manager loaded at construction
// (the persisted mode, or defaultMode if nothing was persisted). It
// must be called exactly once, after all other subsystems are wired,
// since the recorder side starts the Ingest Manager and the
// vdo_publisher side spawns one supervised process per enabled camera.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startSideLocked(ctx, m.mode)
}

// GetMode returns the current mode.
func (m *Manager) GetMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Status returns a snapshot of the manager's state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Mode: m.mode, LastError: m.lastError}
}

// SetMode transitions to target. A transition to the current mode is
// a no-op success. On any failure, the manager reverts to the
// original mode and returns a structured error; the original mode's
// services are left running.
func (m *Manager) SetMode(ctx context.Context, target Mode) error {
	if target != ModeRecorder && target != ModeVDOPublisher {
		return errs.Newf(errs.KindInvalidRequest, "unknown mode %q", target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode == target {
		return nil
	}
	from := m.mode

	if err := m.stopSideLocked(from); err != nil {
		m.lastError = err.Error()
		return errs.Wrap(errs.KindResourceContention, "stopping outgoing mode "+string(from), err)
	}

	if err := m.startSideLocked(ctx, target); err != nil {
		m.lastError = err.Error()
		// Revert: best effort restart of the original side.
		if revertErr := m.startSideLocked(ctx, from); revertErr != nil {
			m.log.Error().Err(revertErr).Str("mode", string(from)).Msg("failed to revert mode after failed transition")
		}
		return errs.Wrap(errs.KindResourceContention, "starting incoming mode "+string(target), err)
	}

	if err := m.persistLocked(target); err != nil {
		m.lastError = err.Error()
		// Revert: stop the incoming side and restart the original one.
		_ = m.stopSideLocked(target)
		if revertErr := m.startSideLocked(ctx, from); revertErr != nil {
			m.log.Error().Err(revertErr).Str("mode", string(from)).Msg("failed to revert mode after failed persist")
		}
		return errs.Wrap(errs.KindInvalidRequest, "persisting mode state", err)
	}

	m.mode = target
	m.lastError = ""
	m.bus.Publish("mode.changed", map[string]string{"from": string(from), "to": string(target)})
	return nil
}

func (m *Manager) stopSideLocked(mode Mode) error {
	switch mode {
	case ModeRecorder:
		m.ingest.StopAll(context.Background())
		return nil
	case ModeVDOPublisher:
		m.procs.StopAll()
		return nil
	default:
		return nil
	}
}

func (m *Manager) startSideLocked(ctx context.Context, mode Mode) error {
	switch mode {
	case ModeRecorder:
		results := m.ingest.StartAll(ctx)
		for id, err := range results {
			if err != nil {
				return fmt.Errorf("camera %s failed to start: %w", id, err)
			}
		}
		return nil
	case ModeVDOPublisher:
		for _, spec := range m.specs {
			if !spec.Enabled {
				continue
			}
			err := m.procs.Start(ctx, procsup.Spec{
				Name: "vdo_publisher_" + spec.ID,
				Path: vdoPublisherBinary,
				Args: []string{"--device", spec.Device, "--id", spec.ID},
			})
			if err != nil {
				return fmt.Errorf("publisher for %s failed to start: %w", spec.ID, err)
			}
		}
		return nil
	default:
		return nil
	}
}

func (m *Manager) persistLocked(mode Mode) error {
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(stateFile{Mode: mode})
	if err != nil {
		return err
	}
	tmp := m.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.statePath)
}

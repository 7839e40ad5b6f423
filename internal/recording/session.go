// Package recording implements the Recording Subscriber: per-camera
// record pipelines that subscribe to the local media server (never
// the capture device), gated on ingest health, with session metadata
// persistence and a disk-space guard.
package recording

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stagebus/stagebus/internal/errs"
)

// CameraStatus is the per-camera outcome of a recording session.
type CameraStatus string

const (
	CameraRecording CameraStatus = "recording"
	CameraCompleted CameraStatus = "completed"
	CameraFailed    CameraStatus = "failed"
)

// CameraOutcome is one camera's entry inside a Session.
type CameraOutcome struct {
	CameraID string       `json:"camera_id"`
	File     string       `json:"file"`
	Status   CameraStatus `json:"status"`
}

// Session is the persisted record of one record-all span. SessionID
// is derived from the wall-clock time the session started and doubles
// as the on-disk file naming key.
type Session struct {
	SessionID string          `json:"session_id"`
	StartISO  string          `json:"start_iso"`
	EndISO    string          `json:"end_iso,omitempty"`
	Cameras   []CameraOutcome `json:"cameras"`
}

// newSessionID derives a session id from t in the form
// session_YYYYMMDD_HHMMSS.
func newSessionID(t time.Time) string {
	return "session_" + t.Format("20060102_150405")
}

// outputPath is the per-camera recording file path for a session.
func outputPath(recordingsRoot, cameraID, sessionID string) string {
	return recordingsRoot + "/" + cameraID + "/recording_" + sessionID + ".mp4"
}

// ListSessions returns every persisted session id under sessionsDir,
// most recent first. Only directories and names without a ".json"
// suffix are skipped; file contents are not read or validated.
func (m *Manager) ListSessions() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.SessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindInvalidRequest, "reading sessions dir", err)
	}

	ids := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(ent.Name(), ".json"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// GetSession loads one persisted session by id.
func (m *Manager) GetSession(id string) (*Session, error) {
	path := filepath.Join(m.cfg.SessionsDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindInvalidRequest, "session %q not found", id)
		}
		return nil, errs.Wrap(errs.KindInvalidRequest, "reading session file", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, "parsing session file", err)
	}
	return &sess, nil
}

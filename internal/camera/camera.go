// Package camera holds the data model shared by Ingest, Recording and
// the Mixer: the immutable per-device CameraSpec and the mutable
// CameraState owned exclusively by the Ingest supervisor.
package camera

import "time"

// Codec is the camera's preferred publish codec. The Ingest Manager is
// free to publish a different codec than this preference in practice
// (see Recording's codec-mismatch handling); this field only records
// operator intent.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
)

// Spec is the immutable configuration for one capture input, set at
// startup and unchanged for the lifetime of the process.
type Spec struct {
	ID          string `yaml:"id"`
	Device      string `yaml:"device"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Framerate   int    `yaml:"framerate"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	Codec       Codec  `yaml:"codec"`
	Enabled     bool   `yaml:"enabled"`
}

// Status is the tagged state of a camera's ingest pipeline.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusStreaming Status = "streaming"
	StatusNoSignal  Status = "no_signal"
	StatusError     Status = "error"
)

// State is mutated only by the Ingest supervisor and read by everyone
// else through a value snapshot (State is safe to copy).
type State struct {
	ID               string
	Status           Status
	LastWidth        int
	LastHeight       int
	LastProbeAt      time.Time
	RestartAttempts  int
	LastError        string
}

// Snapshot returns a copy of s, safe to hand to callers outside the
// lock that protects the live value.
func (s State) Snapshot() State { return s }

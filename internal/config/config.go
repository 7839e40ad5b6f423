// Package config loads stagebus's two configuration surfaces: an
// environment-derived ServerConfig (ports, data roots, media-server
// location) via envconfig, and a YAML Document describing cameras,
// recording, mixer, reveal and mode-manager options, mirroring how the
// teacher splits envconfig-derived ServerConfig from declarative
// on-disk documents.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/errs"
)

// ServerConfig holds environment-derived process configuration.
type ServerConfig struct {
	HTTPAddr string `envconfig:"STAGEBUS_HTTP_ADDR" default:":8927"`

	MediaServer MediaServer
	NATS        NATS
	Platform    Platform

	ConfigPath string `envconfig:"STAGEBUS_CONFIG" default:"/etc/stagebus/config.yaml"`
	StateDir   string `envconfig:"STAGEBUS_STATE_DIR" default:"/var/lib/stagebus"`

	// ChromeLauncherURL points at a rod-managed browser launcher; empty
	// launches a local headless chrome instead (the normal on-device path).
	ChromeLauncherURL string `envconfig:"STAGEBUS_CHROME_LAUNCHER_URL" default:""`
}

// Platform selects the RK3588 hardware codec elements by default;
// clearing both lets the pipeline builder fall back to software
// encode/decode for development off-target.
type Platform struct {
	HardwareEncoder string `envconfig:"STAGEBUS_HW_ENCODER" default:"mpph264enc"`
	HardwareDecoder string `envconfig:"STAGEBUS_HW_DECODER" default:"mppvideodec"`
}

// MediaServer describes how to reach the local media server's publish,
// subscribe, WHEP and admin surfaces, all on loopback.
type MediaServer struct {
	Host      string `envconfig:"STAGEBUS_MEDIASERVER_HOST" default:"127.0.0.1"`
	RTSPPort  int    `envconfig:"STAGEBUS_MEDIASERVER_RTSP_PORT" default:"8554"`
	WHEPPort  int    `envconfig:"STAGEBUS_MEDIASERVER_WHEP_PORT" default:"8889"`
	AdminPort int    `envconfig:"STAGEBUS_MEDIASERVER_ADMIN_PORT" default:"9997"`
}

// NATS configures the fleet-event bus (internal/fleetbus).
type NATS struct {
	Enabled bool   `envconfig:"STAGEBUS_NATS_ENABLED" default:"false"`
	URL     string `envconfig:"STAGEBUS_NATS_URL" default:"nats://127.0.0.1:4222"`
	Embed   bool   `envconfig:"STAGEBUS_NATS_EMBED" default:"true"`
}

// LoadServerConfig reads process environment variables (optionally
// from a .env file, if present) into ServerConfig.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	var cfg ServerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to process server config: %w", err)
	}
	return cfg, nil
}

// Document is the single structured configuration document: cameras,
// recording, mixer, reveal and mode-manager options, plus the reserved
// external-camera trigger list.
type Document struct {
	Cameras         []camera.Spec     `yaml:"cameras"`
	Recording       RecordingConfig   `yaml:"recording"`
	Mixer           MixerConfig       `yaml:"mixer"`
	Reveal          RevealConfig      `yaml:"reveal"`
	ModeManager     ModeManagerConfig `yaml:"mode_manager"`
	ExternalCameras []ExternalCamera  `yaml:"external_cameras"`
}

type RecordingConfig struct {
	RecordingsRoot        string `yaml:"recordings_root"`
	SessionsDir           string `yaml:"sessions_dir"`
	Fragmented            bool   `yaml:"fragmented"`
	FragmentDurationMs    int    `yaml:"fragment_duration_ms"`
	MinDiskSpaceBytes     uint64 `yaml:"min_disk_space"`
	WarningDiskSpaceBytes uint64 `yaml:"warning_disk_space"`
}

type MixerConfig struct {
	Enabled           bool   `yaml:"enabled"`
	OutputWidth       int    `yaml:"output_width"`
	OutputHeight      int    `yaml:"output_height"`
	OutputBitrateKbps int    `yaml:"output_bitrate_kbps"`
	OutputCodec       string `yaml:"output_codec"`
	RecordingEnabled  bool   `yaml:"recording_enabled"`
	MediaServerPath   string `yaml:"media_server_path"`
	ScenesDir         string `yaml:"scenes_dir"`
}

type RevealConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Framerate   int    `yaml:"framerate"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
	Renderer    string `yaml:"renderer"`
}

type ModeManagerConfig struct {
	DefaultMode string `yaml:"default_mode"`
	StateFile   string `yaml:"state_file"`
}

// ExternalCamera is a reserved hook for external, parallel hardware
// recording triggers. Out of core scope beyond being invoked on
// start-all/stop-all.
type ExternalCamera struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// LoadDocument parses the YAML configuration document at path and
// validates it. A malformed document is a ConfigInvalid error — the
// process must not start.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfigInvalid, "reading config document "+path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errs.Wrap(errs.KindConfigInvalid, "parsing config document "+path, err)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate rejects configuration that cannot possibly produce a
// runnable system: a camera with no id, duplicate camera ids, an
// enabled camera with no device path, an enabled mixer with no
// scenes_dir, or an unknown default_mode. The Reveal section is not
// checked.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Cameras))
	for _, c := range d.Cameras {
		if c.ID == "" {
			return errs.New(errs.KindConfigInvalid, "camera entry missing id")
		}
		if seen[c.ID] {
			return errs.Newf(errs.KindConfigInvalid, "duplicate camera id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Enabled && c.Device == "" {
			return errs.Newf(errs.KindConfigInvalid, "camera %q enabled with no device path", c.ID)
		}
	}
	if d.Mixer.Enabled && d.Mixer.ScenesDir == "" {
		return errs.New(errs.KindConfigInvalid, "mixer enabled but scenes_dir is empty")
	}
	switch d.ModeManager.DefaultMode {
	case "", "recorder", "vdo_publisher":
	default:
		return errs.Newf(errs.KindConfigInvalid, "unknown default_mode %q", d.ModeManager.DefaultMode)
	}
	return nil
}

// EnabledCameras returns only the cameras with Enabled set, preserving
// document order.
func (d *Document) EnabledCameras() []camera.Spec {
	out := make([]camera.Spec, 0, len(d.Cameras))
	for _, c := range d.Cameras {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Package pipeline is a pure function layer: given a camera spec, a
// role, and platform flags, it returns a GStreamer pipeline
// description string. Builders never touch global state, open
// devices, or perform I/O — they only format strings. Callers
// substitute ids/paths; the result is handed to internal/gst.New.
package pipeline

import "fmt"

// Role selects which pipeline shape to build.
type Role string

const (
	RoleIngestPublish  Role = "ingest_publish"
	RoleRecordSubscribe Role = "record_subscribe"
	RoleMixerSubscribe Role = "mixer_subscribe"
	RoleRevealPublish  Role = "reveal_publish"
)

// Platform carries the flags that vary the element chain between the
// target RK3588 hardware path and a development/test fallback.
type Platform struct {
	// HardwareEncoder is the RK3588 hardware H.264 encoder element name
	// (e.g. "mpph264enc"). Empty selects a software fallback (x264enc)
	// for development off-target.
	HardwareEncoder string
	// HardwareDecoder names the hardware decoder element for mixer
	// subscribe branches (e.g. "mppvideodec"). Empty selects "avdec_h264".
	HardwareDecoder string
}

func (p Platform) encoder() string {
	if p.HardwareEncoder != "" {
		return p.HardwareEncoder
	}
	return "x264enc"
}

func (p Platform) decoder() string {
	if p.HardwareDecoder != "" {
		return p.HardwareDecoder
	}
	return "avdec_h264"
}

// Input is the parameters a Builder needs: a camera's device/working
// resolution, the role, and the caller-substituted ids/paths.
type Input struct {
	Role Role

	// Capture device path, e.g. "/dev/video0". Used by ingest_publish only.
	Device string

	// Working resolution the capture is rate/size-converted to before
	// encoding. Ingest rebuilds the pipeline whenever this changes
	// materially (see internal/ingest).
	Width, Height, Framerate int

	BitrateKbps int

	// CameraID / path name on the media server, used to build the
	// loopback RTSP URL for publish and subscribe roles.
	StreamPath string

	// MediaServerHost/RTSPPort address the local media server on
	// loopback IPv4, avoiding IPv6 address-family errors.
	MediaServerHost string
	MediaServerRTSPPort int

	// Record-subscribe only: output container path and whether to mux
	// fragmented MP4.
	OutputPath string
	Fragmented bool

	// Reveal-publish only: the browser-rendered source caps (already
	// rendered to a raw video feed by the reveal renderer's appsrc).
	RevealAppSrcName string
}

// Build returns the pipeline description string for in: one
// gst-launch-style description per role, with no I/O or global state,
// so callers can construct, log and diff a pipeline before handing it
// to the GStreamer runtime.
func Build(in Input, platform Platform) (string, error) {
	switch in.Role {
	case RoleIngestPublish:
		return buildIngestPublish(in, platform)
	case RoleRecordSubscribe:
		return buildRecordSubscribe(in)
	case RoleMixerSubscribe:
		return buildMixerSubscribe(in, platform)
	case RoleRevealPublish:
		return buildRevealPublish(in, platform)
	default:
		return "", fmt.Errorf("pipeline: unknown role %q", in.Role)
	}
}

func rtspURL(in Input) string {
	host := in.MediaServerHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := in.MediaServerRTSPPort
	if port == 0 {
		port = 8554
	}
	return fmt.Sprintf("rtsp://%s:%d/%s", host, port, in.StreamPath)
}

// ingestEncoder returns the hardware H.264 rate-control parameterization
// proven stable on the target SoC: explicit GOP = framerate, CBR mode,
// explicit min/max/initial quantization, and an explicit bitrate.
// Simpler forms (default QP ranges, VBR) induced kernel faults on the
// target device; every field here is required, none are optional tuning.
func ingestEncoder(platform Platform, in Input) string {
	if platform.HardwareEncoder == "" {
		// Development fallback: libx264 has no equivalent RK3588 MPP
		// quantization knobs, so it just gets a CBR-ish bitrate target.
		return fmt.Sprintf("x264enc bitrate=%d tune=zerolatency key-int-max=%d", in.BitrateKbps, in.Framerate)
	}
	return fmt.Sprintf(
		"%s rc-mode=cbr bps=%d gop=%d qp-init=26 qp-min=10 qp-max=51",
		platform.HardwareEncoder, in.BitrateKbps*1000, in.Framerate,
	)
}

// buildIngestPublish builds the Ingest Manager's per-camera publish
// pipeline: capture (format negotiated, no forced pixel format) ->
// rate-convert -> optional scale -> hardware encode -> h264parse ->
// identity (liveness tap, see LivenessElementName) -> rtspclientsink
// (payloading happens inside the RTSP client, no separate payloader
// needed).
func buildIngestPublish(in Input, platform Platform) (string, error) {
	if in.Device == "" {
		return "", fmt.Errorf("pipeline: ingest_publish requires a device path")
	}
	if in.StreamPath == "" {
		return "", fmt.Errorf("pipeline: ingest_publish requires a stream path")
	}

	return fmt.Sprintf(
		"v4l2src device=%s ! videorate ! videoscale ! video/x-raw,width=%d,height=%d,framerate=%d/1 "+
			"! %s ! h264parse config-interval=1 ! identity name=%s "+
			"! rtspclientsink name=videosink location=%s protocols=tcp latency=0",
		in.Device, in.Width, in.Height, in.Framerate,
		ingestEncoder(platform, in), LivenessElementName, rtspURL(in),
	), nil
}

// LivenessElementName names the identity element the ingest publish
// chain always includes between the encoder and the RTSP sink. There
// is no appsink on this pipeline to pull samples from, so
// internal/ingest taps this element's src pad with a buffer probe
// (internal/gst.Pipeline.WatchBufferFlow) to observe real frame flow
// independent of the encoder or sink.
const LivenessElementName = "livesink"

// buildRecordSubscribe builds a low-latency RTSP subscribe pipeline
// that always depayloads H.264 — the codec the ingest publish pipeline
// emits — whatever a camera's configured codec preference (Input
// carries no codec), and muxes into MP4 (fragmented if configured).
func buildRecordSubscribe(in Input) (string, error) {
	if in.StreamPath == "" || in.OutputPath == "" {
		return "", fmt.Errorf("pipeline: record_subscribe requires a stream path and output path")
	}

	mux := "mp4mux"
	if in.Fragmented {
		mux = "mp4mux fragment-duration=1000 streamable=true"
	}

	return fmt.Sprintf(
		"rtspsrc location=%s protocols=tcp latency=200 name=videosink "+
			"! rtph264depay ! h264parse config-interval=1 "+
			"! %s ! filesink location=%s sync=false",
		rtspURL(in), mux, in.OutputPath,
	), nil
}

// buildMixerSubscribe builds a media-only source chain ending in
// decoded raw video frames, suitable as one input of the mixer's
// compositor.
func buildMixerSubscribe(in Input, platform Platform) (string, error) {
	return buildMixerSubscribeNamed(in, platform, "videosink")
}

// buildMixerSubscribeNamed is buildMixerSubscribe with an explicit
// rtspsrc element name, so a superset pipeline with several subscribe
// branches doesn't collide on the default "videosink" name.
func buildMixerSubscribeNamed(in Input, platform Platform, srcName string) (string, error) {
	if in.StreamPath == "" {
		return "", fmt.Errorf("pipeline: mixer_subscribe requires a stream path")
	}
	return fmt.Sprintf(
		"rtspsrc location=%s protocols=tcp latency=100 name=%s "+
			"! rtph264depay ! h264parse ! %s ! videoconvert",
		rtspURL(in), srcName, platform.decoder(),
	), nil
}

// buildRevealPublish builds the publish half of a Reveal output: an
// appsrc fed by the headless-browser renderer, encoded with the
// hardware encoder and pushed to the media server the same way
// ingest publishes.
func buildRevealPublish(in Input, platform Platform) (string, error) {
	if in.RevealAppSrcName == "" {
		return "", fmt.Errorf("pipeline: reveal_publish requires an appsrc name")
	}
	if in.StreamPath == "" {
		return "", fmt.Errorf("pipeline: reveal_publish requires a stream path")
	}
	return fmt.Sprintf(
		"appsrc name=%s format=time is-live=true do-timestamp=true "+
			"! video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 "+
			"! videoconvert ! %s ! h264parse config-interval=1 "+
			"! rtspclientsink location=%s protocols=tcp latency=0",
		in.RevealAppSrcName, in.Width, in.Height, in.Framerate,
		ingestEncoder(platform, in), rtspURL(in),
	), nil
}

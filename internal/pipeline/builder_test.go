package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIngestPublish_UsesHardwareEncoderAndLoopback(t *testing.T) {
	desc, err := Build(Input{
		Role:            RoleIngestPublish,
		Device:          "/dev/video0",
		Width:           1920,
		Height:          1080,
		Framerate:       30,
		BitrateKbps:     4000,
		StreamPath:      "cam0",
		MediaServerHost: "127.0.0.1",
	}, Platform{HardwareEncoder: "mpph264enc"})
	require.NoError(t, err)

	assert.Contains(t, desc, "v4l2src device=/dev/video0")
	assert.Contains(t, desc, "mpph264enc rc-mode=cbr bps=4000000 gop=30")
	assert.Contains(t, desc, "rtsp://127.0.0.1:8554/cam0")
	assert.Contains(t, desc, "identity name="+LivenessElementName, "liveness tap must be present for staleness detection")
	assert.NotContains(t, desc, "::1", "must never use an IPv6 loopback form")
	assert.NotContains(t, desc, "rtph264pay", "RTSP client sink performs payloading itself")
}

func TestBuildIngestPublish_RequiresDeviceAndPath(t *testing.T) {
	_, err := Build(Input{Role: RoleIngestPublish, StreamPath: "cam0"}, Platform{})
	require.Error(t, err)

	_, err = Build(Input{Role: RoleIngestPublish, Device: "/dev/video0"}, Platform{})
	require.Error(t, err)
}

func TestBuildRecordSubscribe_DepaysGivenCodecRegardlessOfCameraPreference(t *testing.T) {
	// The record pipeline depays H.264, the ingest's publish codec, not
	// anything derived from a camera's configured preference — builder
	// takes no CameraSpec at all, only a role input, so there is no
	// preference to leak in.
	desc, err := Build(Input{
		Role:       RoleRecordSubscribe,
		StreamPath: "cam1",
		OutputPath: "/data/recordings/cam1/recording_session_x.mp4",
	}, Platform{})
	require.NoError(t, err)

	assert.Contains(t, desc, "rtph264depay")
	assert.Contains(t, desc, "mp4mux")
	assert.Contains(t, desc, "/data/recordings/cam1/recording_session_x.mp4")
}

func TestBuildRecordSubscribe_Fragmented(t *testing.T) {
	desc, err := Build(Input{
		Role:       RoleRecordSubscribe,
		StreamPath: "cam1",
		OutputPath: "/out.mp4",
		Fragmented: true,
	}, Platform{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(desc, "fragment-duration"))
}

func TestBuildMixerSubscribe_EndsInDecodedFrames(t *testing.T) {
	desc, err := Build(Input{Role: RoleMixerSubscribe, StreamPath: "cam2"}, Platform{HardwareDecoder: "mppvideodec"})
	require.NoError(t, err)
	assert.Contains(t, desc, "mppvideodec")
	assert.Contains(t, desc, "videoconvert")
}

func TestBuildRevealPublish_RequiresAppSrcName(t *testing.T) {
	_, err := Build(Input{Role: RoleRevealPublish, StreamPath: "slides"}, Platform{})
	require.Error(t, err)

	desc, err := Build(Input{
		Role:             RoleRevealPublish,
		RevealAppSrcName: "revealsrc",
		StreamPath:       "slides",
		Width:            1920,
		Height:           1080,
		Framerate:        30,
	}, Platform{})
	require.NoError(t, err)
	assert.Contains(t, desc, "appsrc name=revealsrc")
}

func TestBuild_UnknownRole(t *testing.T) {
	_, err := Build(Input{Role: "bogus"}, Platform{})
	require.Error(t, err)
}

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMixerProgram_RequiresPublishPath(t *testing.T) {
	_, err := BuildMixerProgram([]MixerSource{{StreamPath: "cam1", PadIndex: 0}}, "overlaysrc", MixerOutput{}, Platform{})
	require.Error(t, err)
}

func TestBuildMixerProgram_RequiresAtLeastOneSource(t *testing.T) {
	_, err := BuildMixerProgram(nil, "overlaysrc", MixerOutput{StreamPath: "mixer_program"}, Platform{})
	require.Error(t, err)
}

func TestBuildMixerProgram_RejectsSourceWithoutStreamPath(t *testing.T) {
	_, err := BuildMixerProgram([]MixerSource{{PadIndex: 0}}, "overlaysrc", MixerOutput{StreamPath: "mixer_program"}, Platform{})
	require.Error(t, err)
}

func TestBuildMixerProgram_WiresEachSourceToItsOwnPadIndex(t *testing.T) {
	sources := []MixerSource{
		{StreamPath: "cam1", PadIndex: 0},
		{StreamPath: "cam2", PadIndex: 1},
	}
	desc, err := BuildMixerProgram(sources, "overlaysrc", MixerOutput{
		Width: 1920, Height: 1080, Framerate: 30, BitrateKbps: 4000, StreamPath: "mixer_program",
	}, Platform{})
	require.NoError(t, err)

	assert.Contains(t, desc, "mix.sink_0")
	assert.Contains(t, desc, "mix.sink_1")
	assert.Contains(t, desc, "name=mixsrc_0")
	assert.Contains(t, desc, "name=mixsrc_1")
	assert.Contains(t, desc, "compositor name=mix")
}

func TestBuildMixerProgram_OverlayAlwaysOccupiesLastPadIndex(t *testing.T) {
	sources := []MixerSource{
		{StreamPath: "cam1", PadIndex: 0},
		{StreamPath: "cam2", PadIndex: 1},
		{StreamPath: "slides", PadIndex: 2},
	}
	desc, err := BuildMixerProgram(sources, "overlaysrc", MixerOutput{
		Width: 1280, Height: 720, Framerate: 25, BitrateKbps: 2000, StreamPath: "mixer_program",
	}, Platform{})
	require.NoError(t, err)

	assert.Contains(t, desc, "appsrc name=overlaysrc")
	assert.Contains(t, desc, "overlaysrc")
	assert.True(t, strings.Contains(desc, "mix.sink_3"), "overlay branch should land on sink_%d (len(sources)), got: %s", desc)
}

func TestBuildMixerProgram_UsesHardwareEncoderWhenConfigured(t *testing.T) {
	desc, err := BuildMixerProgram([]MixerSource{{StreamPath: "cam1", PadIndex: 0}}, "overlaysrc", MixerOutput{
		Width: 1920, Height: 1080, Framerate: 30, BitrateKbps: 4000, StreamPath: "mixer_program",
	}, Platform{HardwareEncoder: "mpph264enc", HardwareDecoder: "mppvideodec"})
	require.NoError(t, err)

	assert.Contains(t, desc, "mpph264enc")
	assert.Contains(t, desc, "rc-mode=cbr")
	assert.Contains(t, desc, "mppvideodec")
}

func TestBuildMixerProgram_FallsBackToSoftwareEncoderAndDecoder(t *testing.T) {
	desc, err := BuildMixerProgram([]MixerSource{{StreamPath: "cam1", PadIndex: 0}}, "overlaysrc", MixerOutput{
		Width: 640, Height: 480, Framerate: 15, BitrateKbps: 1000, StreamPath: "mixer_program",
	}, Platform{})
	require.NoError(t, err)

	assert.Contains(t, desc, "x264enc")
	assert.Contains(t, desc, "avdec_h264")
	assert.NotContains(t, desc, "rc-mode=cbr")
}

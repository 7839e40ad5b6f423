package pipeline

import (
	"fmt"
	"strings"
)

// MixerSource is one superset-pipeline input: a media-server path
// (camera or Reveal output) subscribed into a named compositor pad.
type MixerSource struct {
	// StreamPath is the media-server path to subscribe to.
	StreamPath string
	// PadIndex is this source's fixed compositor request-pad index
	// (pad name "sink_<PadIndex>"), stable for the lifetime of the
	// superset so pad-property updates never need to look up a pad by
	// source id through the pipeline itself.
	PadIndex int
}

// MixerOutput parameterizes the mixer's single encoded program output.
type MixerOutput struct {
	Width, Height, Framerate, BitrateKbps int
	StreamPath                            string // publish path, e.g. "mixer_program"
}

// BuildMixerProgram assembles the Mixer Core's superset composition
// pipeline: one decoded media-only branch per MixerSource feeding a
// named compositor pad, a Cairo-overlay appsrc composited last (always
// on top), hardware-encoded and republished to the media server.
// Changing which sources exist forces a rebuild (a new call to this
// function); placement changes within the existing source set are
// pad-property updates against the returned pad names and need no
// rebuild.
func BuildMixerProgram(sources []MixerSource, overlayAppSrcName string, out MixerOutput, platform Platform) (string, error) {
	if out.StreamPath == "" {
		return "", fmt.Errorf("pipeline: mixer program requires a publish path")
	}
	if len(sources) == 0 {
		return "", fmt.Errorf("pipeline: mixer program requires at least one source")
	}

	var branches []string
	for _, src := range sources {
		if src.StreamPath == "" {
			return "", fmt.Errorf("pipeline: mixer source missing stream path")
		}
		branch, err := buildMixerSubscribeNamed(Input{StreamPath: src.StreamPath}, platform, fmt.Sprintf("mixsrc_%d", src.PadIndex))
		if err != nil {
			return "", err
		}
		branches = append(branches, fmt.Sprintf("%s ! mix.sink_%d", branch, src.PadIndex))
	}

	overlayBranch := fmt.Sprintf(
		"appsrc name=%s format=time is-live=true do-timestamp=true "+
			"! video/x-raw,format=RGBA,width=%d,height=%d,framerate=%d/1 "+
			"! videoconvert ! mix.sink_%d",
		overlayAppSrcName, out.Width, out.Height, out.Framerate, len(sources),
	)
	branches = append(branches, overlayBranch)

	program := fmt.Sprintf(
		"compositor name=mix background=black "+
			"! video/x-raw,width=%d,height=%d,framerate=%d/1 "+
			"! videoconvert ! %s "+
			"! h264parse config-interval=1 "+
			"! rtspclientsink name=videosink location=%s protocols=tcp latency=0",
		out.Width, out.Height, out.Framerate,
		ingestEncoder(platform, Input{BitrateKbps: out.BitrateKbps, Framerate: out.Framerate}),
		rtspURL(Input{StreamPath: out.StreamPath}),
	)

	return strings.Join(branches, " ") + " " + program, nil
}

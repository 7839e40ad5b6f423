package reveal

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/pipeline"
)

func newTestManager() *Manager {
	return New(Config{Width: 1280, Height: 720, Framerate: 30, MediaServerPath: "reveal"}, pipeline.Platform{}, "", zerolog.Nop())
}

func TestStatus_ReportsBothFixedOutputsIdle(t *testing.T) {
	m := newTestManager()
	statuses := m.Status()
	require.Len(t, statuses, 2)

	seen := map[OutputID]bool{}
	for _, s := range statuses {
		assert.Equal(t, StateIdle, s.State)
		seen[s.ID] = true
	}
	assert.True(t, seen[OutputSlides])
	assert.True(t, seen[OutputSlidesOverlay])
}

func TestStop_OnUnknownOutputReturnsInvalidRequest(t *testing.T) {
	m := newTestManager()
	err := m.Stop(OutputID("not_a_real_output"))
	assert.Error(t, err)
}

func TestStopAll_OnIdleOutputsIsNoOp(t *testing.T) {
	m := newTestManager()
	m.StopAll()
	for _, s := range m.Status() {
		assert.Equal(t, StateIdle, s.State)
	}
}

func TestValidOutput(t *testing.T) {
	assert.True(t, validOutput(OutputSlides))
	assert.True(t, validOutput(OutputSlidesOverlay))
	assert.False(t, validOutput(OutputID("slides_program")))
}

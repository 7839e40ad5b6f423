package overlay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_DuplicateIDRejected(t *testing.T) {
	m := New(1920, 1080)
	require.NoError(t, m.Create("lt1", KindLowerThird, Data{Title: "Breaking"}))
	assert.Error(t, m.Create("lt1", KindLowerThird, Data{}))
}

func TestShow_UnknownElementRejected(t *testing.T) {
	m := New(1920, 1080)
	assert.Error(t, m.Show("missing", 0))
}

func TestAdvance_HiddenElementNotVisible(t *testing.T) {
	el := &Element{state: AnimHidden}
	visible, _ := advance(el, 0)
	assert.False(t, visible)
}

func TestAdvance_EnteringReachesFullyVisibleAfterDuration(t *testing.T) {
	el := &Element{state: AnimEntering, stateChangedAt: 0}
	visible, progress := advance(el, animDuration)
	assert.True(t, visible)
	assert.Equal(t, 1.0, progress)
	assert.Equal(t, AnimVisible, el.state)
}

func TestAdvance_ExitingReachesHiddenAfterDuration(t *testing.T) {
	el := &Element{state: AnimExiting, stateChangedAt: 0}
	visible, _ := advance(el, animDuration)
	assert.False(t, visible)
	assert.Equal(t, AnimHidden, el.state)
}

func TestAdvance_EnteringPartwayThroughIsPartiallyVisible(t *testing.T) {
	el := &Element{state: AnimEntering, stateChangedAt: 0}
	visible, progress := advance(el, animDuration/2)
	assert.True(t, visible)
	assert.InDelta(t, 0.5, progress, 0.01)
	assert.Equal(t, AnimEntering, el.state)
}

func TestDelete_RemovesElement(t *testing.T) {
	m := New(1920, 1080)
	require.NoError(t, m.Create("lt1", KindLowerThird, Data{}))
	require.NoError(t, m.Delete("lt1"))
	assert.Error(t, m.Delete("lt1"))
}

func TestClear_RemovesAllElements(t *testing.T) {
	m := New(1920, 1080)
	require.NoError(t, m.Create("lt1", KindLowerThird, Data{}))
	require.NoError(t, m.Create("tk1", KindTicker, Data{}))
	m.Clear()
	assert.Empty(t, m.List())
}

func TestUpdate_UnknownElementRejected(t *testing.T) {
	m := New(1920, 1080)
	assert.Error(t, m.Update("missing", Data{}))
}

func TestShowHide_TracksAnimationState(t *testing.T) {
	m := New(1920, 1080)
	require.NoError(t, m.Create("lt1", KindLowerThird, Data{}))
	require.NoError(t, m.Show("lt1", 1*time.Second))

	list := m.List()
	require.Len(t, list, 1)
	assert.Equal(t, AnimEntering, list[0].state)
}

func TestDims_ScaleConvertsNormalizedToPixels(t *testing.T) {
	d := dims{w: 1920, h: 1080}

	x, y := d.scale(0.5, 0.25)
	assert.Equal(t, 960.0, x)
	assert.Equal(t, 270.0, y)

	x, y = d.scale(0, 0)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)

	x, y = d.scale(1, 1)
	assert.Equal(t, 1920.0, x)
	assert.Equal(t, 1080.0, y)
}

func TestDraw_ProducesFullFrameRegardlessOfResolution(t *testing.T) {
	// A lower-third anchored at (0.1, 0.8) is drawn on a 1920x1080
	// manager; the returned ARGB32 buffer must cover the whole configured
	// resolution. Where the element lands inside the frame is not
	// inspected here.
	m := New(1920, 1080)
	require.NoError(t, m.Create("lt1", KindLowerThird, Data{
		Title: "Breaking", Subtitle: "Live now", X: 0.1, Y: 0.8,
	}))
	require.NoError(t, m.Show("lt1", 0))

	frame := m.Draw(animDuration)
	assert.Len(t, frame, 1920*1080*4, "ARGB32 surface must be fully sized to the configured resolution")
}

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/errs"
	"github.com/stagebus/stagebus/internal/gst"
	"github.com/stagebus/stagebus/internal/mediaserver"
	"github.com/stagebus/stagebus/internal/pipeline"
)

func newTestManager(t *testing.T, specs []camera.Spec) *Manager {
	t.Helper()
	gw := mediaserver.New(mediaserver.Config{Host: "127.0.0.1", RTSPPort: 8554}, zerolog.Nop())
	m, err := New(specs, gw, pipeline.Platform{}, zerolog.Nop())
	require.NoError(t, err)
	return m
}

func TestNew_OnlyEnabledCamerasGetEntries(t *testing.T) {
	m := newTestManager(t, []camera.Spec{
		{ID: "cam0", Device: "/dev/video0", Enabled: true},
		{ID: "cam1", Device: "/dev/video1", Enabled: false},
	})

	status := m.Status()
	assert.Contains(t, status, "cam0")
	assert.NotContains(t, status, "cam1")
	assert.Equal(t, camera.StatusIdle, status["cam0"].Status)
}

func TestStart_UnknownCameraIsInvalidRequest(t *testing.T) {
	m := newTestManager(t, nil)

	err := m.Start(context.Background(), "cam0")
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindInvalidRequest, e.Kind)
}

func TestStop_UnknownCameraIsInvalidRequest(t *testing.T) {
	m := newTestManager(t, nil)

	err := m.Stop(context.Background(), "cam0")
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindInvalidRequest, e.Kind)
}

func TestIsStreaming_UnknownCameraIsFalse(t *testing.T) {
	m := newTestManager(t, nil)
	assert.False(t, m.IsStreaming("cam0"))
}

func TestStartAll_ReturnsOneResultPerEnabledCamera(t *testing.T) {
	m := newTestManager(t, []camera.Spec{
		{ID: "cam0", Device: "/dev/video0", Enabled: true},
		{ID: "cam1", Device: "/dev/video1", Enabled: true},
	})

	results := m.StartAll(context.Background())
	assert.Len(t, results, 2)
	assert.Contains(t, results, "cam0")
	assert.Contains(t, results, "cam1")
}

func TestStop_OnNeverStartedCameraIsIdempotent(t *testing.T) {
	m := newTestManager(t, []camera.Spec{
		{ID: "cam0", Device: "/dev/video0", Enabled: true},
	})

	require.NoError(t, m.Stop(context.Background(), "cam0"))
	require.NoError(t, m.Stop(context.Background(), "cam0"))

	status := m.Status()
	assert.Equal(t, camera.StatusIdle, status["cam0"].Status)
}

func TestStatus_SnapshotsAreIndependentCopies(t *testing.T) {
	m := newTestManager(t, []camera.Spec{
		{ID: "cam0", Device: "/dev/video0", Enabled: true},
	})

	first := m.Status()["cam0"]
	first.Status = camera.StatusError

	second := m.Status()["cam0"]
	assert.Equal(t, camera.StatusIdle, second.Status, "mutating a returned snapshot must not affect manager state")
}

func TestMaterialDrift(t *testing.T) {
	assert.False(t, materialDrift(1920, 1920))
	assert.True(t, materialDrift(1000, 1920))
	assert.False(t, materialDrift(0, 1920), "a failed-to-resolve probe is treated as unchanged")
	assert.True(t, materialDrift(1920, 0))
}

func TestIsStaleLocked_NilPipelineIsStaleRegardlessOfLastFrame(t *testing.T) {
	m := newTestManager(t, nil)
	e := &entry{}
	e.lastFrameAt.Store(time.Now().UnixNano())

	assert.True(t, m.isStaleLocked(e))
}

func TestIsStaleLocked_NoFrameEverObservedIsStale(t *testing.T) {
	m := newTestManager(t, nil)
	e := &entry{pipeline: new(gst.Pipeline)}

	assert.True(t, m.isStaleLocked(e), "lastFrameAt is zero until buildAndStartLocked stamps it")
}

func TestIsStaleLocked_RecentFrameIsNotStale(t *testing.T) {
	m := newTestManager(t, nil)
	e := &entry{pipeline: new(gst.Pipeline)}
	e.lastFrameAt.Store(time.Now().UnixNano())

	assert.False(t, m.isStaleLocked(e))
}

func TestIsStaleLocked_OldFrameIsStale(t *testing.T) {
	m := newTestManager(t, nil)
	e := &entry{pipeline: new(gst.Pipeline)}
	e.lastFrameAt.Store(time.Now().Add(-2 * stalenessThreshold).UnixNano())

	assert.True(t, m.isStaleLocked(e))
}

func TestShutdown_StopsSchedulerAndAllCameras(t *testing.T) {
	m := newTestManager(t, []camera.Spec{
		{ID: "cam0", Device: "/dev/video0", Enabled: true},
	})

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsStreaming("cam0"))
}

package mode

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/procsup"
)

type fakeIngest struct {
	startAllCalls int
	stopAllCalls  int
	startErr      map[string]error
}

func (f *fakeIngest) StartAll(ctx context.Context) map[string]error {
	f.startAllCalls++
	return f.startErr
}

func (f *fakeIngest) StopAll(ctx context.Context) { f.stopAllCalls++ }

func TestSetMode_NoOpWhenTargetEqualsCurrent(t *testing.T) {
	dir := t.TempDir()
	ingest := &fakeIngest{}
	m := New(filepath.Join(dir, "mode.json"), ModeRecorder, nil, ingest, procsup.New(zerolog.Nop()), nil, zerolog.Nop())

	require.NoError(t, m.SetMode(context.Background(), ModeRecorder))
	assert.Equal(t, 0, ingest.stopAllCalls)
}

func TestSetMode_FailureRevertsToOriginalMode(t *testing.T) {
	dir := t.TempDir()
	ingest := &fakeIngest{}
	specs := []camera.Spec{{ID: "cam0", Device: "/dev/video0", Enabled: true}}
	m := New(filepath.Join(dir, "mode.json"), ModeRecorder, specs, ingest, procsup.New(zerolog.Nop()), nil, zerolog.Nop())

	err := m.SetMode(context.Background(), ModeVDOPublisher)
	require.Error(t, err) // /usr/local/bin/vdo_publisher does not exist in this environment

	assert.Equal(t, ModeRecorder, m.GetMode())
	assert.Equal(t, 1, ingest.stopAllCalls) // outgoing recorder side was stopped...
	assert.Equal(t, 1, ingest.startAllCalls) // ...then restarted as part of the revert
}

func TestNew_ReadsExistingStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mode.json")
	data, err := json.Marshal(stateFile{Mode: ModeVDOPublisher})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m := New(path, ModeRecorder, nil, &fakeIngest{}, procsup.New(zerolog.Nop()), nil, zerolog.Nop())
	assert.Equal(t, ModeVDOPublisher, m.GetMode())
}

func TestNew_FallsBackToDefaultWhenStateFileAbsent(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "missing.json"), ModeVDOPublisher, nil, &fakeIngest{}, procsup.New(zerolog.Nop()), nil, zerolog.Nop())
	assert.Equal(t, ModeVDOPublisher, m.GetMode())
}

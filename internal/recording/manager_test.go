package recording

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/camera"
)

type fakeGate struct {
	streaming map[string]bool
}

func (f fakeGate) IsStreaming(id string) bool { return f.streaming[id] }

func TestStartAll_NonStreamingCameraFailsWithoutError(t *testing.T) {
	root := t.TempDir()
	m := New(Config{RecordingsRoot: root, SessionsDir: t.TempDir()}, fakeGate{streaming: map[string]bool{"cam0": false}}, zerolog.Nop())

	sessionID, results, err := m.StartAll(context.Background(), []camera.Spec{
		{ID: "cam0", Enabled: true},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, sessionID)
	require.Contains(t, results, "cam0")
	assert.Error(t, results["cam0"])
}

func TestStartAll_DisabledCameraSkipped(t *testing.T) {
	root := t.TempDir()
	m := New(Config{RecordingsRoot: root, SessionsDir: t.TempDir()}, fakeGate{streaming: map[string]bool{"cam1": true}}, zerolog.Nop())

	_, results, err := m.StartAll(context.Background(), []camera.Spec{
		{ID: "cam1", Enabled: false},
	})
	require.NoError(t, err)
	assert.NotContains(t, results, "cam1")
}

func TestStartAll_SecondCallWhileSessionActiveIsNoOp(t *testing.T) {
	root := t.TempDir()
	m := New(Config{RecordingsRoot: root, SessionsDir: t.TempDir()}, fakeGate{}, zerolog.Nop())

	first, _, err := m.StartAll(context.Background(), []camera.Spec{{ID: "cam0", Enabled: true}})
	require.NoError(t, err)

	second, results, err := m.StartAll(context.Background(), []camera.Spec{{ID: "cam0", Enabled: true}})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Nil(t, results)
}

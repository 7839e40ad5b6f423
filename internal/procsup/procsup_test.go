package procsup

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_IsIdempotent(t *testing.T) {
	s := New(zerolog.Nop())
	spec := Spec{Name: "sleeper", Path: "sleep", Args: []string{"5"}}

	require.NoError(t, s.Start(context.Background(), spec))
	require.NoError(t, s.Start(context.Background(), spec))
	assert.True(t, s.IsRunning("sleeper"))

	require.NoError(t, s.Stop("sleeper"))
	assert.False(t, s.IsRunning("sleeper"))
}

func TestStop_OnNotRunningIsNoOp(t *testing.T) {
	s := New(zerolog.Nop())
	assert.NoError(t, s.Stop("never-started"))
}

func TestStop_SendsTermAndProcessExits(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), Spec{Name: "looper", Path: "sleep", Args: []string{"30"}}))

	done := make(chan struct{})
	go func() {
		_ = s.Stop("looper")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGrace + 2*time.Second):
		t.Fatal("stop did not complete within grace period plus margin")
	}
	assert.False(t, s.IsRunning("looper"))
}

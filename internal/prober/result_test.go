package prober

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProbe_MissingDeviceReturnsZeroResultNotError(t *testing.T) {
	res := Probe(context.Background(), "/dev/does-not-exist-stagebus", 100*time.Millisecond)
	assert.False(t, res.HasSignal)
	assert.Equal(t, 0, res.Width)
	assert.Equal(t, 0, res.Height)
}

func TestProbe_TimeoutDoesNotBlockLongerThanBound(t *testing.T) {
	start := time.Now()
	_ = Probe(context.Background(), "/dev/does-not-exist-stagebus", 50*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

package fleetbus

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNilBusNoError(t *testing.T) {
	b, err := New(Config{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestPublish_OnNilBusIsNoOp(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Publish("mode.changed", map[string]string{"mode": "recorder"}) })
}

func TestClose_OnNilBusIsNoOp(t *testing.T) {
	var b *Bus
	assert.NotPanics(t, func() { b.Close() })
}

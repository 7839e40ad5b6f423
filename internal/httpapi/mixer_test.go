package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stagebus/stagebus/internal/config"
	"github.com/stagebus/stagebus/internal/graphics/overlay"
	"github.com/stagebus/stagebus/internal/graphics/reveal"
	"github.com/stagebus/stagebus/internal/mixer"
	"github.com/stagebus/stagebus/internal/pipeline"
	"github.com/stagebus/stagebus/internal/scene"
)

type fakeIngest struct{ streaming map[string]bool }

func (f *fakeIngest) IsStreaming(id string) bool { return f.streaming[id] }

func newTestMixer(t *testing.T) *mixer.Manager {
	t.Helper()
	store := newTestSceneStore(t)
	revealMgr := reveal.New(reveal.Config{Width: 1280, Height: 720, Framerate: 30}, pipeline.Platform{}, "", zerolog.Nop())
	overlayMgr := overlay.New(1920, 1080)
	return mixer.New(config.MixerConfig{OutputWidth: 1920, OutputHeight: 1080, OutputBitrateKbps: 4000},
		pipeline.Platform{}, &fakeIngest{}, revealMgr, store, overlayMgr, zerolog.Nop())
}

func TestHandleMixerStatus_UnconfiguredReturnsServiceUnavailable(t *testing.T) {
	s := New(Deps{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/mixer/status", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleMixerStatus_ReturnsIdleSnapshot(t *testing.T) {
	s := New(Deps{Mixer: newTestMixer(t)}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/mixer/status", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idle")
}

func TestHandleMixerStart_MissingSceneIDReturnsBadRequest(t *testing.T) {
	s := New(Deps{Mixer: newTestMixer(t)}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mixer/start", strings.NewReader(`{}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMixerStart_UnknownSceneReturnsStructuredError(t *testing.T) {
	s := New(Deps{Mixer: newTestMixer(t)}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mixer/start", strings.NewReader(`{"scene_id":"missing"}`))
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestHandleMixerTake_UnknownTransitionReturnsBadRequest(t *testing.T) {
	s := New(Deps{Mixer: newTestMixer(t)}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mixer/take", strings.NewReader(`{"transition":"wipe"}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMixerStop_IdempotentOnIdleMixer(t *testing.T) {
	s := New(Deps{Mixer: newTestMixer(t)}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mixer/stop", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

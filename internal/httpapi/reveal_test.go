package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stagebus/stagebus/internal/graphics/reveal"
	"github.com/stagebus/stagebus/internal/pipeline"
)

func TestHandleRevealStatus_ReturnsBothFixedOutputsIdle(t *testing.T) {
	mgr := reveal.New(reveal.Config{Width: 1280, Height: 720, Framerate: 30}, pipeline.Platform{}, "", zerolog.Nop())
	s := New(Deps{Reveal: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reveal/status", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "slides")
	assert.Contains(t, rec.Body.String(), "slides_overlay")
}

func TestHandleRevealStart_MissingURLReturnsBadRequest(t *testing.T) {
	mgr := reveal.New(reveal.Config{Width: 1280, Height: 720, Framerate: 30}, pipeline.Platform{}, "", zerolog.Nop())
	s := New(Deps{Reveal: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reveal/slides/start", strings.NewReader(`{}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRevealStop_UnknownOutputReturnsStructuredError(t *testing.T) {
	mgr := reveal.New(reveal.Config{Width: 1280, Height: 720, Framerate: 30}, pipeline.Platform{}, "", zerolog.Nop())
	s := New(Deps{Reveal: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reveal/bogus/stop", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

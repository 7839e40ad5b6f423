package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stagebus/stagebus/internal/mode"
	"github.com/stagebus/stagebus/internal/procsup"
)

type modeIngestStub struct{}

func (modeIngestStub) StartAll(context.Context) map[string]error { return nil }
func (modeIngestStub) StopAll(context.Context)                   {}

func TestHandleModeGet_ReturnsCurrentMode(t *testing.T) {
	dir := t.TempDir()
	m := mode.New(filepath.Join(dir, "mode.json"), mode.ModeRecorder, nil, modeIngestStub{}, procsup.New(zerolog.Nop()), nil, zerolog.Nop())
	s := New(Deps{Mode: m}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/mode", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recorder")
}

func TestHandleModeSet_UnknownModeReturnsBadRequest(t *testing.T) {
	dir := t.TempDir()
	m := mode.New(filepath.Join(dir, "mode.json"), mode.ModeRecorder, nil, modeIngestStub{}, procsup.New(zerolog.Nop()), nil, zerolog.Nop())
	s := New(Deps{Mode: m}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/mode", strings.NewReader(`{"mode":"bogus"}`))
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

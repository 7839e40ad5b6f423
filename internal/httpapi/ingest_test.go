package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stagebus/stagebus/internal/camera"
)

type fakeIngestGate struct {
	status map[string]camera.State
}

func (f *fakeIngestGate) Status() map[string]camera.State { return f.status }

func TestHandleIngestStatus_UnconfiguredReturnsServiceUnavailable(t *testing.T) {
	s := New(Deps{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ingest/status", nil)

	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleIngestStatus_ReturnsManagerSnapshot(t *testing.T) {
	gate := &fakeIngestGate{status: map[string]camera.State{
		"cam0": {ID: "cam0", Status: camera.StatusStreaming},
	}}
	s := New(Deps{Ingest: gate}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ingest/status", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cam0")
	assert.Contains(t, rec.Body.String(), "streaming")
}

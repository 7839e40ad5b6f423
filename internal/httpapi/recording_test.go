package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/stagebus/stagebus/internal/recording"
)

func TestHandleRecordSessionsList_EmptyDirReturnsEmptyList(t *testing.T) {
	dir := t.TempDir()
	mgr := recording.New(recording.Config{RecordingsRoot: dir, SessionsDir: dir}, &fakeIngest{}, zerolog.Nop())
	s := New(Deps{Recording: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/record/sessions", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleRecordSessionFetch_UnknownIDReturnsBadRequest(t *testing.T) {
	dir := t.TempDir()
	mgr := recording.New(recording.Config{RecordingsRoot: dir, SessionsDir: dir}, &fakeIngest{}, zerolog.Nop())
	s := New(Deps{Recording: mgr}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/record/sessions/missing", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecordStartAll_UnconfiguredReturnsServiceUnavailable(t *testing.T) {
	s := New(Deps{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/record/start-all", nil)
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

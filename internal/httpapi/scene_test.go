package httpapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebus/stagebus/internal/scene"
)

func newTestSceneStore(t *testing.T) *scene.Store {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quad.json"), []byte(`{"id":"quad","output_width":1920,"output_height":1080,"slots":[
		{"source":"cam1","kind":"camera","x":0,"y":0,"w":0.5,"h":0.5,"z":0,"alpha":1}
	]}`), 0o644))
	store, err := scene.New(dir, zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestHandleScenesList_ReturnsLoadedScenes(t *testing.T) {
	store := newTestSceneStore(t)
	s := New(Deps{Scenes: store}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/scenes", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quad")
}

func TestHandleSceneGet_UnknownSceneReturnsBadRequest(t *testing.T) {
	store := newTestSceneStore(t)
	s := New(Deps{Scenes: store}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/scenes/missing", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSceneGet_KnownSceneReturnsBody(t *testing.T) {
	store := newTestSceneStore(t)
	s := New(Deps{Scenes: store}, zerolog.Nop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/scenes/quad", nil)
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cam1")
}

package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagebus/stagebus/internal/errs"
)

func (s *Server) requireScenes(w http.ResponseWriter) bool {
	if s.deps.Scenes == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Kind: "unavailable", Message: "scene store not configured"})
		return false
	}
	return true
}

func (s *Server) handleScenesList(w http.ResponseWriter, r *http.Request) {
	if !s.requireScenes(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Scenes.List())
}

func (s *Server) handleSceneGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireScenes(w) {
		return
	}

	id := mux.Vars(r)["id"]
	sc, ok := s.deps.Scenes.Get(id)
	if !ok {
		writeError(w, errs.Newf(errs.KindInvalidRequest, "unknown scene %q", id))
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

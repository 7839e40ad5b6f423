// Package httpapi implements the control plane: a gorilla/mux REST API
// plus a websocket endpoint for low-latency overlay control, fronting
// the Ingest, Recording, Mixer, Scene, Reveal, Overlay and Mode
// managers. Handlers never hold a subsystem lock across a response
// write — every manager method already returns a value snapshot.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/graphics/overlay"
	"github.com/stagebus/stagebus/internal/graphics/reveal"
	"github.com/stagebus/stagebus/internal/mediaserver"
	"github.com/stagebus/stagebus/internal/mixer"
	"github.com/stagebus/stagebus/internal/mode"
	"github.com/stagebus/stagebus/internal/recording"
	"github.com/stagebus/stagebus/internal/scene"
)

// ingestGate is the slice of internal/ingest.Manager the control plane
// needs.
type ingestGate interface {
	Status() map[string]camera.State
}

// recordingGate is the slice of internal/recording.Manager the control
// plane needs. It's an interface, not a concrete *recording.Manager,
// so cmd/stagebus can wrap the real Manager with external-camera
// trigger invocation without internal/recording knowing about it.
type recordingGate interface {
	StartAll(ctx context.Context, specs []camera.Spec) (string, map[string]error, error)
	StopAll(ctx context.Context) (*recording.Session, error)
	Status() map[string]recording.CameraStatus
	ListSessions() ([]string, error)
	GetSession(id string) (*recording.Session, error)
}

// Deps wires every subsystem manager into the Server. Fields left nil
// cause their endpoint group to respond 503 rather than panic.
type Deps struct {
	Ingest    ingestGate
	Cameras   []camera.Spec // enabled specs, passed to recording.StartAll
	Recording recordingGate
	Mixer     *mixer.Manager
	Scenes    *scene.Store
	Reveal    *reveal.Manager
	Overlay   *overlay.Manager
	Mode      *mode.Manager
	Gateway   *mediaserver.Gateway
}

// Server holds the dependencies every handler closes over.
type Server struct {
	deps Deps
	log  zerolog.Logger
}

// New constructs a Server; Router builds its router.
func New(deps Deps, log zerolog.Logger) *Server {
	return &Server{deps: deps, log: log}
}

// Router builds the mux.Router serving every endpoint group.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestIDMiddleware)
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/ingest/status", s.handleIngestStatus).Methods(http.MethodGet)

	api.HandleFunc("/record/start-all", s.handleRecordStartAll).Methods(http.MethodPost)
	api.HandleFunc("/record/stop-all", s.handleRecordStopAll).Methods(http.MethodPost)
	api.HandleFunc("/record/status", s.handleRecordStatus).Methods(http.MethodGet)
	api.HandleFunc("/record/sessions", s.handleRecordSessionsList).Methods(http.MethodGet)
	api.HandleFunc("/record/sessions/{id}", s.handleRecordSessionFetch).Methods(http.MethodGet)

	api.HandleFunc("/mixer/status", s.handleMixerStatus).Methods(http.MethodGet)
	api.HandleFunc("/mixer/start", s.handleMixerStart).Methods(http.MethodPost)
	api.HandleFunc("/mixer/stop", s.handleMixerStop).Methods(http.MethodPost)
	api.HandleFunc("/mixer/set_scene", s.handleMixerSetScene).Methods(http.MethodPost)
	api.HandleFunc("/mixer/take", s.handleMixerTake).Methods(http.MethodPost)

	api.HandleFunc("/scenes", s.handleScenesList).Methods(http.MethodGet)
	api.HandleFunc("/scenes/{id}", s.handleSceneGet).Methods(http.MethodGet)

	api.HandleFunc("/reveal/status", s.handleRevealStatus).Methods(http.MethodGet)
	api.HandleFunc("/reveal/{output}/start", s.handleRevealStart).Methods(http.MethodPost)
	api.HandleFunc("/reveal/{output}/stop", s.handleRevealStop).Methods(http.MethodPost)

	api.HandleFunc("/overlay/elements", s.handleOverlayList).Methods(http.MethodGet)
	api.HandleFunc("/overlay/elements", s.handleOverlayClear).Methods(http.MethodDelete)
	api.HandleFunc("/overlay/elements/{id}", s.handleOverlayCreate).Methods(http.MethodPost)
	api.HandleFunc("/overlay/elements/{id}", s.handleOverlayUpdate).Methods(http.MethodPut)
	api.HandleFunc("/overlay/elements/{id}", s.handleOverlayDelete).Methods(http.MethodDelete)

	api.HandleFunc("/mode", s.handleModeGet).Methods(http.MethodGet)
	api.HandleFunc("/mode", s.handleModeSet).Methods(http.MethodPost)
	api.HandleFunc("/mode/status", s.handleModeStatus).Methods(http.MethodGet)

	api.HandleFunc("/whep/{path}", s.handleWHEPOffer).Methods(http.MethodPost)
	api.HandleFunc("/whep/{path}", s.handleWHEPPatch).Methods(http.MethodPatch)

	api.HandleFunc("/overlay/ws", s.handleOverlayWS)

	return router
}

// requestIDMiddleware stamps every response with an X-Request-Id and
// logs the method, path and duration once the handler returns.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.New().String()[:8]
		w.Header().Set("X-Request-Id", reqID)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// ListenAndServe builds the router and serves it on addr until ctx is
// canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line and headers are already written; nothing left
		// to do but drop it, same as a broken pipe on write.
		_ = err
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

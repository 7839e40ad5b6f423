package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stagebus/stagebus/internal/camera"
	"github.com/stagebus/stagebus/internal/config"
	"github.com/stagebus/stagebus/internal/recording"
)

// triggerClient is used for the fire-and-forget external-camera
// trigger calls; bounded so one unreachable parallel-hardware recorder
// never stalls an operator's start-all/stop-all request.
var triggerClient = &http.Client{Timeout: 5 * time.Second}

// externalTriggerRecording wraps *recording.Manager to additionally
// invoke every configured external_cameras[*] trigger URL alongside a
// start-all/stop-all call. The trigger list is a reserved integration
// surface (spec names only "invoke on start-all / stop-all", nothing
// about the body or response), so a trigger failure is logged and
// otherwise ignored — it never fails the underlying recording call.
type externalTriggerRecording struct {
	*recording.Manager
	triggers []config.ExternalCamera
	log      zerolog.Logger
}

func newExternalTriggerRecording(mgr *recording.Manager, triggers []config.ExternalCamera, log zerolog.Logger) *externalTriggerRecording {
	return &externalTriggerRecording{Manager: mgr, triggers: triggers, log: log}
}

type triggerPayload struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
}

func (r *externalTriggerRecording) StartAll(ctx context.Context, specs []camera.Spec) (string, map[string]error, error) {
	sessionID, results, err := r.Manager.StartAll(ctx, specs)
	if err == nil {
		r.fireAll(triggerPayload{Event: "start", SessionID: sessionID})
	}
	return sessionID, results, err
}

func (r *externalTriggerRecording) StopAll(ctx context.Context) (*recording.Session, error) {
	sess, err := r.Manager.StopAll(ctx)
	if err == nil && sess != nil {
		r.fireAll(triggerPayload{Event: "stop", SessionID: sess.SessionID})
	}
	return sess, err
}

func (r *externalTriggerRecording) fireAll(payload triggerPayload) {
	for _, t := range r.triggers {
		go r.fire(t, payload)
	}
}

func (r *externalTriggerRecording) fire(t config.ExternalCamera, payload triggerPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		r.log.Warn().Err(err).Str("external_camera", t.ID).Msg("encoding external camera trigger payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		r.log.Warn().Err(err).Str("external_camera", t.ID).Msg("building external camera trigger request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := triggerClient.Do(req)
	if err != nil {
		r.log.Warn().Err(err).Str("external_camera", t.ID).Msg("external camera trigger call failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		r.log.Warn().Str("external_camera", t.ID).Int("status", resp.StatusCode).Msg("external camera trigger returned non-2xx")
	}
}

package httpapi

import (
	"errors"
	"net/http"

	"github.com/stagebus/stagebus/internal/errs"
)

// errorResponse is the structured body every error response shares.
type errorResponse struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// statusForKind maps an errs.Kind to the HTTP status the control plane
// reports it as, per the error-kind table: config and startup failures
// never reach here (they stop the process before the server exists),
// everything else is either a client mistake (4xx) or a transient
// subsystem condition the caller should retry or inspect status for.
func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidRequest:
		return http.StatusBadRequest
	case errs.KindDeviceUnavailable, errs.KindNoSignal, errs.KindResourceContention:
		return http.StatusConflict
	case errs.KindDiskExhausted:
		return http.StatusInsufficientStorage
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	case errs.KindPipelineConstruct, errs.KindPipelineRuntime:
		return http.StatusUnprocessableEntity
	case errs.KindConfigInvalid:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError translates err into a structured JSON response. A plain
// (non-*errs.Error) error is reported as an opaque 500 — subsystems are
// expected to always return a *errs.Error across their public API, so
// reaching this branch is itself a bug worth a generic response rather
// than guessing at a status code.
func writeError(w http.ResponseWriter, err error) {
	kind, ok := errs.KindOf(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Kind: "internal", Message: err.Error()})
		return
	}

	resp := errorResponse{Kind: string(kind), Message: err.Error()}
	var se *errs.Error
	if errors.As(err, &se) {
		resp.Details = se.Details
	}
	writeJSON(w, statusForKind(kind), resp)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Kind: string(errs.KindInvalidRequest), Message: message})
}

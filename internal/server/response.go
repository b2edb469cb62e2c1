package server

import (
	"encoding/json"
	"net/http"

	"github.com/debemdeboas/quill/internal/apperr"
	"github.com/debemdeboas/quill/internal/config"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/debemdeboas/quill/internal/workspace"
)

type envelope struct {
	Data          any             `json:"data,omitempty"`
	Error         *errorBody      `json:"error,omitempty"`
	Notifications []notify.Notice `json:"notifications"`
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func drain(ws *workspace.Workspace) []notify.Notice {
	if ws == nil {
		return []notify.Notice{}
	}
	notices := ws.Notices.Drain()
	if notices == nil {
		notices = []notify.Notice{}
	}
	return notices
}

func writeJSON(w http.ResponseWriter, ws *workspace.Workspace, status int, data any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data, Notifications: drain(ws)}); err != nil {
		serverLogger.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, ws *workspace.Workspace, err error) {
	kind := apperr.KindOf(err)
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(apperr.HTTPStatus(kind))
	body := envelope{
		Error:         &errorBody{Kind: kind, Message: err.Error()},
		Notifications: drain(ws),
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		serverLogger.Error().Err(encErr).Msg("Error encoding response")
	}
}

// respond writes err when set and data otherwise.
func respond(w http.ResponseWriter, ws *workspace.Workspace, data any, err error) {
	if err != nil {
		writeError(w, ws, err)
		return
	}
	writeJSON(w, ws, http.StatusOK, data)
}

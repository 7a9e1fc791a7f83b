package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "parkflow/internal/errors"
	"parkflow/internal/wizard"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.StatusCode(err), ErrorResponse{
		Error: apperrors.UserMessage(err),
		Kind:  apperrors.KindOf(err),
	})
}

// respond writes the wizard state with the status of err.
func respond(w http.ResponseWriter, wz *wizard.Wizard, err error) {
	respondWith(w, WizardResponse{}, wz, err)
}

func respondWith(w http.ResponseWriter, body WizardResponse, wz *wizard.Wizard, err error) {
	body.Wizard = wz.View()
	status := http.StatusOK
	if err != nil {
		status = apperrors.StatusCode(err)
		body.Error = apperrors.UserMessage(err)
		body.Kind = apperrors.KindOf(err)
	}
	writeJSON(w, status, body)
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.ErrBadRequest("invalid request body")
	}
	return nil
}

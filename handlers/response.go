package handlers

import (
	"encoding/json"
	"net/http"

	"wizardAPI/internal/apperror"
	"wizardAPI/internal/logger"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithAppError maps err to its status. Internal errors are logged and
// their details withheld from the client.
func respondWithAppError(w http.ResponseWriter, log *logger.Logger, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}
	respondWithError(w, status, apperror.PublicMessage(err))
}

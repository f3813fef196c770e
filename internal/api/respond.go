package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/ec-backoffice/internal/apperr"
	"go.uber.org/zap"
)

// retryAfterSeconds is advertised on ConcurrencyConflict responses.
const retryAfterSeconds = "1"

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message, code string, status int) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondError maps err through the apperr taxonomy. Errors outside it are
// logged and reported as a bare 500.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		respondJSONError(w, "internal server error", "INTERNAL", status)
		return
	}
	if apperr.IsRetryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	respondJSONError(w, err.Error(), apperr.CodeOf(err), status)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("INVALID_REQUEST_BODY", "invalid request body: "+err.Error())
	}
	return nil
}

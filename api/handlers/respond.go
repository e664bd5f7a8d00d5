package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/utils"
)

const maxPayloadBytes = 1 << 20

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []incidents.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]any{"error": body})
}

// writeError maps domain errors onto the API error envelope. Anything that is
// not a validation or not-found error is logged and reported as a 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *utils.Logger, err error) {
	var verr *incidents.ValidationError
	switch {
	case errors.As(err, &verr):
		writeErrorBody(w, http.StatusBadRequest, errorBody{Code: "validation_failed", Message: "validation failed", Fields: verr.Fields})
	case errors.Is(err, incidents.ErrNotFound):
		writeErrorBody(w, http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()})
	case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
		logger.Warnf("request cancelled %s %s: %v", r.Method, r.URL.Path, err)
		writeErrorBody(w, http.StatusServiceUnavailable, errorBody{Code: "cancelled", Message: "request cancelled"})
	default:
		logger.WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
		writeErrorBody(w, http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal server error"})
	}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &tooLarge):
			return incidents.Invalid("body", "payload too large")
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return incidents.Invalid(typeErr.Field, "has the wrong type")
		case errors.Is(err, io.EOF):
			return incidents.Invalid("body", "empty payload")
		default:
			return incidents.Invalid("body", "malformed JSON")
		}
	}
	if dec.More() {
		return incidents.Invalid("body", "unexpected trailing data")
	}
	return nil
}

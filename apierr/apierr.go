// Package apierr is the HTTP error taxonomy for the server package,
// grounded on the teacher's typed-error-plus-handleError convention in
// server/server.go.
package apierr

import (
	"net/http"

	"github.com/goccy/go-json"
)

// E is a structured API error: a status code, a short machine-readable
// code, and a human-readable message. Handlers return *E instead of a bare
// error so the caller always has a status to write.
type E struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *E) Error() string {
	return e.Message
}

func BadRequest(message string) *E {
	return &E{Status: http.StatusBadRequest, Code: "bad_request", Message: message}
}

func Unauthenticated(message string) *E {
	return &E{Status: http.StatusUnauthorized, Code: "unauthenticated", Message: message}
}

func Forbidden(message string) *E {
	return &E{Status: http.StatusForbidden, Code: "forbidden", Message: message}
}

func NotFound(message string) *E {
	return &E{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

func Internal(message string) *E {
	return &E{Status: http.StatusInternalServerError, Code: "internal", Message: message}
}

// Write encodes err as the JSON body {error, message} with its Status code.
func Write(w http.ResponseWriter, err *E) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(err)
}

// Package rest is the JSON HTTP API of the server. Every JSON response uses
// the same envelope; handlers translate service errors into status codes
// through writeError.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/bigdatakeeper/internal/common"
)

// Envelope wraps every JSON response.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrorBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// writeError renders err. Caller-facing messages carried by common.Error
// are passed through; anything else becomes fallback. 5xx causes are logged
// and, in development, echoed in the error field.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *common.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, Envelope{Success: false, Message: "Validation failed", Data: verr.Fields})
		return
	}

	status := statusFor(err)
	env := Envelope{Success: false, Message: common.Message(err, fallback)}

	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		if h.development {
			env.Error = err.Error()
		}
	}
	writeJSON(w, status, env)
}

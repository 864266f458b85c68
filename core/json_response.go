package core

import (
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
)

// JSONResponse is the standard response envelope.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// JSON writes a success envelope with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, JSONResponse{Data: data})
}

// JSONWithMeta writes a success envelope carrying extra metadata, used for
// client-actionable hints such as redirect targets.
func JSONWithMeta(w http.ResponseWriter, status int, data any, meta map[string]any) {
	writeJSON(w, status, JSONResponse{Data: data, Meta: meta})
}

// ErrorWithMeta writes an error envelope carrying metadata hints, such as
// the upgrade page a client should redirect to.
func ErrorWithMeta(w http.ResponseWriter, status int, code, message string, meta map[string]any) {
	writeJSON(w, status, JSONResponse{
		Meta:  meta,
		Error: &ErrorDetail{Code: code, Message: message},
	})
}

// Error translates err into an error envelope. HTTPError and ValidationError
// map to their own statuses; anything else is logged at error level and
// reported as a generic 500 so internal detail never leaks to clients.
func Error(w http.ResponseWriter, log *slog.Logger, err error) {
	status := http.StatusInternalServerError
	detail := &ErrorDetail{Code: "internal_error", Message: http.StatusText(status)}

	var valErr ValidationError
	var httpErr HTTPError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
		detail.Code = "validation_error"
		detail.Message = "validation failed"
		if len(valErr) > 0 {
			detail.Details = make(map[string][]string)
			maps.Copy(detail.Details, valErr)
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		detail.Code = httpErr.Key
		detail.Message = http.StatusText(httpErr.Code)
	default:
		if log != nil {
			log.Error("unhandled request error", slog.Any("error", err))
		}
	}

	writeJSON(w, status, JSONResponse{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the JSON body of every non-GraphQL endpoint: health, readiness
// and the errors raised by middleware before a handler runs.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	RequestID string `json:"request_id"`
}

func metaFor(r *http.Request) *Meta {
	if id := RequestIDFrom(r); id != "" {
		return &Meta{RequestID: id}
	}
	return nil
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// JSONSuccess writes a 200 envelope carrying data.
func JSONSuccess(w http.ResponseWriter, r *http.Request, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: metaFor(r)})
}

// JSONError writes an error envelope with the given status.
func JSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, Envelope{
		Error: &ErrorBody{Code: code, Message: message},
		Meta:  metaFor(r),
	})
}

package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body shape shared by every REST endpoint
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success writes {"status":"success","data":...}
func Success(w http.ResponseWriter, code int, data any) {
	write(w, code, Envelope{Status: StatusSuccess, Data: data})
}

// Error writes {"status":"error","message":...}
func Error(w http.ResponseWriter, code int, message string) {
	write(w, code, Envelope{Status: StatusError, Message: message})
}

func write(w http.ResponseWriter, code int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

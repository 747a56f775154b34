// Package api serves the auth flows over HTTP. Every response is a JSON
// envelope with HTTP status 200; clients branch on the success field.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// MsgInvalidBody is returned when a request body is not valid JSON.
const MsgInvalidBody = "invalid request body"

const maxBodyBytes = 1 << 20

// Envelope is the body of every API response.
type Envelope struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	UserData *UserData `json:"userData,omitempty"`
}

// UserData is the public view of an account.
type UserData struct {
	Name              string `json:"name"`
	IsAccountVerified bool   `json:"isAccountVerified"`
}

func writeJSON(w http.ResponseWriter, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, message string) {
	writeJSON(w, Envelope{Success: true, Message: message})
}

func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, Envelope{Success: false, Message: message})
}

// decodeBody reads a JSON object into dst. An empty body leaves dst zeroed so
// the input's own validation reports the missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

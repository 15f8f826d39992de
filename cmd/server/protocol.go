// Package main provides a TCP schema version-control server.
package main

import (
	"encoding/json"
)

// Request is one client command. Command selects the operation; the
// remaining fields are read as that operation needs them.
type Request struct {
	Command string `json:"command"`

	// object addressing (apply, history, impacted)
	Type   string `json:"type,omitempty"`
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name,omitempty"`

	// apply
	Kind       string `json:"kind,omitempty"`
	Definition string `json:"definition,omitempty"`
	NewName    string `json:"newName,omitempty"`

	// commit, branch, tag, log
	Branch  string `json:"branch,omitempty"`
	Message string `json:"message,omitempty"`
	At      string `json:"at,omitempty"`

	// diff, migrate
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`

	// merge
	Ours   string `json:"ours,omitempty"`
	Theirs string `json:"theirs,omitempty"`
}

// Response is the server's reply to one request.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// ApplyResponse reports the version an object landed on after a change
// event.
type ApplyResponse struct {
	Version string `json:"version"`
}

// CommitResponse reports a new snapshot commit.
type CommitResponse struct {
	Commit string `json:"commit"`
}

// MigrateResponse carries rendered migration scripts.
type MigrateResponse struct {
	Forward  string `json:"forward"`
	Backward string `json:"backward"`
}

// AuthResponse reports a successful authentication.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

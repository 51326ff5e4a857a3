// Package chat implements the real-time room subsystem: the per-match room
// registry with fan-out, the connection gate that authenticates and
// authorizes sockets before they may join, and the WebSocket server hosting
// both.
package chat

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gobwas/ws"
)

// Close codes sent to clients. They must stay distinguishable so clients can
// tell why the server hung up.
const (
	// CloseBadRoom: the room reference was malformed or names no match.
	CloseBadRoom ws.StatusCode = 4000
	// CloseUnauthorized: missing or invalid credential.
	CloseUnauthorized ws.StatusCode = 4001
	// CloseForbidden: authenticated, but not a participant of the match.
	CloseForbidden ws.StatusCode = 4003
	// CloseRoomClosed: the match backing the room was torn down.
	CloseRoomClosed ws.StatusCode = 4004
)

// Inbound validation failures. The text is what the client sees in the
// error frame; the connection stays open in all of these cases.
var (
	errMalformedJSON = errors.New("Invalid JSON format.")
	errInvalidText   = errors.New("Message cannot be empty")
)

// broadcastFrame is the server → client fan-out payload.
type broadcastFrame struct {
	Message   string `json:"message"`
	SenderID  string `json:"sender_id"`
	Timestamp string `json:"timestamp"`
}

// errorFrame is the server → client structured error payload.
type errorFrame struct {
	Error string `json:"error"`
}

// decodeInbound parses a client text frame ({"message": "<string>"}) and
// returns the trimmed message text.
//
// Failure modes:
//   - malformed JSON → errMalformedJSON
//   - missing, non-string or empty "message" → errInvalidText
//   - whitespace-only text → errInvalidText (nothing is broadcast)
func decodeInbound(data []byte) (string, error) {
	var frame struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", errMalformedJSON
	}

	text, ok := frame.Message.(string)
	if !ok || text == "" {
		return "", errInvalidText
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errInvalidText
	}
	return text, nil
}

// newBroadcast encodes the fan-out payload for a stored message.
func newBroadcast(text, senderID string, ts time.Time) []byte {
	data, _ := json.Marshal(broadcastFrame{
		Message:   text,
		SenderID:  senderID,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	})
	return data
}

// newErrorFrame encodes a structured error for a single connection.
func newErrorFrame(msg string) []byte {
	data, _ := json.Marshal(errorFrame{Error: msg})
	return data
}

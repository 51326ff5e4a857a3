package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInbound(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "valid", input: `{"message":"salaam"}`, want: "salaam"},
		{name: "surrounding whitespace trimmed", input: `{"message":"  hi there "}`, want: "hi there"},
		{name: "extra keys ignored", input: `{"message":"hi","type":"chat"}`, want: "hi"},
		{name: "malformed json", input: `not json`, wantErr: errMalformedJSON},
		{name: "truncated json", input: `{"message":`, wantErr: errMalformedJSON},
		{name: "missing key", input: `{"text":"hi"}`, wantErr: errInvalidText},
		{name: "non-string message", input: `{"message":42}`, wantErr: errInvalidText},
		{name: "null message", input: `{"message":null}`, wantErr: errInvalidText},
		{name: "empty message", input: `{"message":""}`, wantErr: errInvalidText},
		{name: "whitespace only", input: `{"message":"   \t\n"}`, wantErr: errInvalidText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeInbound([]byte(tc.input))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewBroadcastShape(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 123456789, time.UTC)
	data := newBroadcast("salaam", "profile-1", ts)

	var frame struct {
		Message   string `json:"message"`
		SenderID  string `json:"sender_id"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "salaam", frame.Message)
	assert.Equal(t, "profile-1", frame.SenderID)

	parsed, err := time.Parse(time.RFC3339Nano, frame.Timestamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestNewErrorFrame(t *testing.T) {
	var frame struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(newErrorFrame("Invalid JSON format."), &frame))
	assert.Equal(t, "Invalid JSON format.", frame.Error)
}

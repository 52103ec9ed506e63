package queue

import (
	"encoding/json"
	"fmt"
)

// MessageVersion is the current submission message schema version.
const MessageVersion = 1

// Message announces that a record was submitted in a workspace.
type Message struct {
	WorkspaceID    string `json:"workspaceId"`
	RecordName     string `json:"recordName"`
	SubmittedCount int    `json:"submittedCount"`
	RequestID      string `json:"requestId,omitempty"`
	EnqueuedAt     string `json:"enqueuedAt"`
	Version        int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Messages from a newer
// schema version are rejected.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}

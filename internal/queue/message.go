package queue

import (
	"encoding/json"
	"fmt"
)

const (
	// TypeSubmissionFinalized announces a completed intake ready for rendering and review.
	TypeSubmissionFinalized = "submission.finalized"
	messageVersion          = 1
)

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Type          string `json:"type"`
	TrackingID    string `json:"trackingId"`
	DocumentType  string `json:"documentType"`
	Language      string `json:"language"`
	FieldCount    int    `json:"fieldCount"`
	Authoritative bool   `json:"authoritative"`
	ArchiveKey    string `json:"archiveKey,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	FinalizedAt   string `json:"finalizedAt"`
	Version       int    `json:"version"`
}

// NewSubmissionFinalized fills the type and version of a finalized-submission message.
func NewSubmissionFinalized(msg Message) Message {
	msg.Type = TypeSubmissionFinalized
	msg.Version = messageVersion
	return msg
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version != messageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if msg.TrackingID == "" {
		return Message{}, fmt.Errorf("message missing trackingId")
	}
	return msg, nil
}

package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rdyatmika/swara/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeGenerationEvent MessageType = "generation_event"
	MessageTypePing            MessageType = "ping"
	MessageTypePong            MessageType = "pong"
	MessageTypeError           MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// GenerationEventMessage pushes one output state change to clients.
type GenerationEventMessage struct {
	BaseMessage
	RecordingID string `json:"recording_id"`
	OutputID    string `json:"output_id,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Status      string `json:"status"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// CreateEventMessage converts a domain event into its wire form.
func CreateEventMessage(event entities.GenerationEvent) *GenerationEventMessage {
	msg := &GenerationEventMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeGenerationEvent,
			Timestamp: event.Timestamp.Format(time.RFC3339),
		},
		RecordingID: event.RecordingID.String(),
		Kind:        string(event.Kind),
		Status:      string(event.Status),
	}
	if event.OutputID != uuid.Nil {
		msg.OutputID = event.OutputID.String()
	}
	return msg
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}

func mustMarshal(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

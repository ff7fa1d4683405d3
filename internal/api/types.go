package api

import (
	"time"

	"github.com/rdyatmika/swara/domain/entities"
)

// TokenRequest represents the request payload for issuing a user token
type TokenRequest struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan"`
}

// TokenResponse represents the response payload for issuing a user token
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateFolderRequest names a new user folder
type CreateFolderRequest struct {
	Name string `json:"name"`
}

// StartRecordingRequest begins a capture session
type StartRecordingRequest struct {
	Folder string `json:"folder"`
}

// StopRecordingRequest finalizes a capture session
type StopRecordingRequest struct {
	Folder       string `json:"folder"`
	GenerateText bool   `json:"generateText"`
}

// ImportRequest registers an existing audio file
type ImportRequest struct {
	Path         string `json:"path"`
	Folder       string `json:"folder"`
	GenerateText bool   `json:"generateText"`
}

// CustomOutputRequest creates a new custom output
type CustomOutputRequest struct {
	Settings entities.OutputSettings `json:"settings"`
}

// MoveRequest relocates a recording
type MoveRequest struct {
	Folder string `json:"folder"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

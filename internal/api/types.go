package api

import (
	"time"

	"github.com/irthomasthomas/Observer-sub001/domain/entities"
)

// StreamAuthRequest requests a streaming token. ClientID is optional; one is
// generated when absent.
type StreamAuthRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

// StreamAuthResponse carries the issued streaming token.
type StreamAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// LoadModelRequest configures a model load.
type LoadModelRequest struct {
	ModelID   string `json:"model_id"`
	Task      string `json:"task,omitempty"`
	Language  string `json:"language,omitempty"`
	Quantized bool   `json:"quantized"`
}

// ModelStateResponse is a snapshot of the model lifecycle state.
type ModelStateResponse struct {
	State entities.ModelState `json:"state"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

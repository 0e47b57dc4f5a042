package dto

import (
	"github.com/noteleaf/noteleaf/internal/models"
)

// ErrorDetails is the structured error information in a response.
type ErrorDetails struct {
	Code    models.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// Defines the validation interface for requests.

package dto

import (
	"fmt"

	"github.com/noteleaf/noteleaf/internal/models"
)

// Validatable is implemented by request types that can validate their fields.
// The Wrap functions in the server package use this interface as a type
// constraint so every request type provides validation.
type Validatable interface {
	Validate() error
}

// MissingField returns the standard error for a missing or invalid required
// field.
func MissingField(field string) error {
	return models.BadRequest(fmt.Sprintf("missing or invalid field: %s", field)).
		WithDetail("field", field)
}

package validators

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the shared validator instance used by handlers.
func Validator() *validator.Validate {
	return validate
}

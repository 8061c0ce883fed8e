package common_model

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// DescriptiveError is the JSON envelope every handler uses for failures.
type DescriptiveError struct {
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Context     string   `json:"context"`
	Details     []string `json:"details,omitempty"`
}

type ApiError struct {
	Message string
	Err     error
	Context string
}

func NewApiError(message string, err error, context string) *ApiError {
	return &ApiError{Message: message, Err: err, Context: context}
}

// Send renders the error into the response envelope.
func (e *ApiError) Send() DescriptiveError {
	out := DescriptiveError{
		Message: e.Message,
		Context: e.Context,
	}
	if e.Err != nil {
		out.Description = e.Err.Error()
	}

	var verrs validator.ValidationErrors
	if errors.As(e.Err, &verrs) {
		for _, fe := range verrs {
			out.Details = append(out.Details, fe.Namespace()+": "+fe.Tag())
		}
	}

	return out
}

func (e *ApiError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func NewParseJsonError(err error) *ApiError {
	return NewApiError("unable to parse body", err, "json")
}

func NewValidationError(err error) *ApiError {
	return NewApiError("validation failed", err, "validator")
}

// Package validation holds field-level input validation for the API
// payloads. Validators return a slice of FieldError; an empty slice means
// the input passed.
package validation

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

package core

import "errors"

var (
	// ErrEmptyUsername rejects registration with a blank username.
	ErrEmptyUsername = errors.New("username is required")
	// ErrMissingField rejects a submission with a blank required field.
	ErrMissingField = errors.New("missing required field")
)

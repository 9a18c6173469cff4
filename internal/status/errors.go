package status

import "errors"

var (
	// ErrNotFound indicates the status record does not exist.
	ErrNotFound = errors.New("status record not found")
	// ErrTerminal indicates the record already reached a final status.
	ErrTerminal = errors.New("status record is terminal")
)

// Error codes carried on failed records.
const (
	CodeValidation = 400
	CodeInternal   = 500
)

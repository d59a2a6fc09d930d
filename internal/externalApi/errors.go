package externalApi

import "fmt"

type ErrorKind int

const (
	// ErrKindValidation: the backend returned a structured list of field-level
	// validation messages.
	ErrKindValidation ErrorKind = iota
	// ErrKindRejected: the backend rejected the request with a single message.
	ErrKindRejected
	// ErrKindUnknown: the failure body had no recognizable shape.
	ErrKindUnknown
)

// APIError is the normalized form of every non-2xx backend response. The
// backend's failure bodies come in three shapes (validation message list,
// detail string, error string); they are flattened here so callers never
// branch on raw payload structure. Detail is never empty.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Detail)
}

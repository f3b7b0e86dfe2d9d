package streams

import "fmt"

// StreamError represents a domain-specific error.
type StreamError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Is matches any StreamError with the same code, so errors.Is works against
// the sentinels below.
func (e *StreamError) Is(target error) bool {
	t, ok := target.(*StreamError)
	return ok && t.Code == e.Code
}

// Error codes.
const (
	ErrCodeStreamNotFound = "STREAM_NOT_FOUND"
	ErrCodeDeviceBusy     = "DEVICE_BUSY"
	ErrCodeInvalidSource  = "INVALID_SOURCE"
)

// Sentinels for errors.Is.
var (
	ErrNotFound      = &StreamError{Code: ErrCodeStreamNotFound, Message: "stream not found"}
	ErrDeviceBusy    = &StreamError{Code: ErrCodeDeviceBusy, Message: "device already in use"}
	ErrInvalidSource = &StreamError{Code: ErrCodeInvalidSource, Message: "source failed validation"}
)

// NewStreamError creates a new stream error.
func NewStreamError(code, message string, cause error) *StreamError {
	return &StreamError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

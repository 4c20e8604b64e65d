// File: internal/services/ai/errors.go
package ai

import "fmt"

type ErrorType string

const (
	ErrTypeConfig    ErrorType = "CONFIG"
	ErrTypeProvider  ErrorType = "PROVIDER"
	ErrTypeStreaming ErrorType = "STREAMING"
	// ErrTypePayload marks a response that arrived but lacked the data the
	// caller needs, e.g. no image in an edit response.
	ErrTypePayload ErrorType = "PAYLOAD"
)

type AIError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
}

func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AI %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("AI %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *AIError) Unwrap() error { return e.Cause }

func NewConfigError(msg string) *AIError {
	return &AIError{Type: ErrTypeConfig, Operation: "config", Message: msg}
}

func NewProviderError(operation, msg string, cause error) *AIError {
	return &AIError{Type: ErrTypeProvider, Operation: operation, Message: msg, Cause: cause}
}

func NewStreamingError(operation, msg string, cause error) *AIError {
	return &AIError{Type: ErrTypeStreaming, Operation: operation, Message: msg, Cause: cause}
}

func NewPayloadError(operation, msg string) *AIError {
	return &AIError{Type: ErrTypePayload, Operation: operation, Message: msg}
}

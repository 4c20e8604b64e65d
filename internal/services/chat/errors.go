// File: internal/services/chat/errors.go
package chat

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ErrTypeConfig     ErrorType = "CONFIG"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeStreaming  ErrorType = "STREAMING"
	ErrTypeAction     ErrorType = "ACTION"
	ErrTypeStorage    ErrorType = "STORAGE"
)

type ChatError struct {
	Type      ErrorType
	Operation string
	Message   string
	ChatID    string
	Cause     error
}

func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Chat %s error in %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("Chat %s error in %s: %s", e.Type, e.Operation, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Cause }

func NewValidationError(operation, msg string) *ChatError {
	return &ChatError{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewStreamingError(operation, msg string, cause error) *ChatError {
	return &ChatError{Type: ErrTypeStreaming, Operation: operation, Message: msg, Cause: cause}
}

// errStopped signals cooperative cancellation of a streaming exchange. It is
// a settled outcome, not a failure.
var errStopped = errors.New("generation stopped")

// FailureText renders a remote failure as the terminal assistant message for
// the turn. No error ever crosses the orchestrator boundary; this text is how
// a failure stays inspectable in the conversation log.
func FailureText(action string, err error) string {
	return fmt.Sprintf("Sorry, something went wrong during %s. (%v)", action, err)
}

// SetupFailureText explains a permanently failed remote-client setup.
func SetupFailureText(err error) string {
	return fmt.Sprintf("The AI client failed to initialize: %v", err)
}

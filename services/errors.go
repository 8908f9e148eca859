package services

import "errors"

var (
	// ErrUnsupportedFormat is returned when a document's format cannot be parsed.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrEmptyDocument is returned when no extractable text remains after parsing.
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrUnknownTool is reported to the model when it calls a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrModelTimeout is returned when a completion round exceeds its deadline.
	ErrModelTimeout = errors.New("model call timed out")
	// ErrCompletionFailed wraps any other failure of the completion service.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrEmptyQuery is returned for a blank question.
	ErrEmptyQuery = errors.New("query must not be empty")
)

// IsRetryable reports whether the caller may reasonably retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrModelTimeout) || errors.Is(err, ErrCompletionFailed)
}

package apiclient

import (
	"context"
	"errors"
	"fmt"
)

// GenericMessage is shown when no better message is available.
const GenericMessage = "Something went wrong"

var (
	// ErrMalformedResponse means a 2xx response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrLoginRequired is returned before any request when an identity is required but absent.
	ErrLoginRequired = errors.New("login required")
)

// APIError represents a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// TransportError wraps a failure to reach the server.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports input rejected before any request was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UserMessage maps err to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.Message != "" {
		return vErr.Message
	}
	switch {
	case errors.Is(err, ErrLoginRequired):
		return "Please log in to continue"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return "Network request failed"
	}
	return GenericMessage
}

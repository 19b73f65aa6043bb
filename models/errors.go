package models

import (
	"errors"
	"fmt"
)

// Error codes for fetch failures. Each code maps to a recovery policy in the
// arbiter and the batch runner: everything short of ALL_METHODS_FAILED is
// recovered locally, and even that only fails the single source.
const (
	ErrCodeNetwork           = "NETWORK_FAILURE"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrCodeRendering         = "RENDERING_FAILURE"
	ErrCodeAllMethodsFailed  = "ALL_METHODS_FAILED"
	ErrCodeFeedParse         = "FEED_PARSE_FAILED"
	ErrCodeBrowserCrash      = "BROWSER_CRASH"
	ErrCodeLLMFailure        = "LLM_FAILURE"
	ErrCodeInvalidInput      = "INVALID_INPUT"
)

// FetchError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type FetchError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError.
func NewFetchError(code, message string, err error) *FetchError {
	return &FetchError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code from err, or empty if err is not a
// FetchError.
func CodeOf(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

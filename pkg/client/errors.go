package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a CDN fetch failure.
type ErrorCode string

const (
	// CodeTimeout means the request exceeded its deadline.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeNetwork means the transport failed before a response arrived.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeHTTP means the CDN answered with a non-2xx status.
	CodeHTTP ErrorCode = "HTTP_ERROR"

	// CodeCDN means the CDN answered with a success:false envelope.
	CodeCDN ErrorCode = "CDN_ERROR"

	// CodeUnknown covers everything else (bad endpoint, unparseable body).
	CodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// CDNFetchError represents a failed CDN fetch with additional context.
type CDNFetchError struct {
	Message    string
	Code       ErrorCode
	HTTPStatus int
	Endpoint   string
	Details    map[string]any
	Err        error
}

// Error implements the error interface.
func (e *CDNFetchError) Error() string {
	msg := fmt.Sprintf("CDN %s", e.Code)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (status %d)", e.HTTPStatus)
	}
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *CDNFetchError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the CDNFetchError in err's chain, or
// CodeUnknown if there is none.
func CodeOf(err error) ErrorCode {
	var fetchErr *CDNFetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Code
	}
	return CodeUnknown
}

// shouldRetry determines if a fetch error is transient.
func shouldRetry(err error) bool {
	var fetchErr *CDNFetchError
	if !errors.As(err, &fetchErr) {
		return false
	}

	switch fetchErr.Code {
	case CodeTimeout, CodeNetwork:
		return true
	case CodeHTTP:
		// 4xx errors are not transient, except these two
		switch fetchErr.HTTPStatus {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		return fetchErr.HTTPStatus >= 500
	default:
		// CDN_ERROR is a deliberate answer, not a transient fault
		return false
	}
}

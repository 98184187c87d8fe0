package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrNotFound reports that a session could not be resolved on disk. It is a
// normal outcome for lookups, not a failure.
var ErrNotFound = errors.New("session not found")

// IsNotFound reports whether err denotes a missing session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StorageReadError represents a session file that could not be read or parsed.
// Callers degrade it to empty/not-found; it never crashes a chat listing.
type StorageReadError struct {
	Path string
	Err  error
}

func (e *StorageReadError) Error() string {
	return fmt.Sprintf("read session file %s: %v", e.Path, e.Err)
}

func (e *StorageReadError) Unwrap() error {
	return e.Err
}

// StorageWriteError represents a failed session write. Unlike read failures it
// is surfaced to the caller, since silently dropping a conversation is worse
// than reporting it.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write session file %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// ModelFetchError represents a failed model-listing request.
type ModelFetchError struct {
	StatusCode int // HTTP status code if applicable
	Err        error
	Message    string
}

func (e *ModelFetchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("fetch models: %v", e.Err)
}

func (e *ModelFetchError) Unwrap() error {
	return e.Err
}

// APIRequestError represents a completion request the remote endpoint
// rejected. Message combines the HTTP status with the provider-supplied
// detail when one was present in the error body.
type APIRequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIRequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error %d: %v", e.StatusCode, e.Err)
}

func (e *APIRequestError) Unwrap() error {
	return e.Err
}

// NetworkError represents a transport-level failure: the endpoint could not
// be reached at all. Message carries remediation steps instead of the raw
// transport error.
type NetworkError struct {
	Err     error
	Message string
}

func (e *NetworkError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError wraps a transport failure with an actionable message.
func NewNetworkError(err error, endpoint string) *NetworkError {
	var hints []string
	hints = append(hints, fmt.Sprintf("could not reach %s", endpoint))
	hints = append(hints, "check that the endpoint URL is correct")
	if strings.Contains(err.Error(), "connection refused") {
		hints = append(hints, "if using a local server, check that it is running")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		hints = append(hints, "the endpoint should start with http:// or https://")
	}
	return &NetworkError{
		Err:     err,
		Message: strings.Join(hints, "; "),
	}
}

// IsNetworkFailure reports whether err is a transport-level failure rather
// than a remote rejection.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"broken pipe",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

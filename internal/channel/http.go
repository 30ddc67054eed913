package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorFromStatus maps an HTTP response status to the delivery error
// taxonomy. Every sender defers to this single mapping instead of deciding
// retryability at its own call site.
func ErrorFromStatus(ch string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return &RetryableError{Channel: ch, Reason: fmt.Sprintf("endpoint returned %d", status)}
	default:
		return &FatalError{Channel: ch, Reason: fmt.Sprintf("endpoint returned %d", status)}
	}
}

// TransportError maps a failed round trip (connection refused, timeout,
// context deadline) to a retryable error: the request may never have
// reached the endpoint.
func TransportError(ch string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &RetryableError{Channel: ch, Reason: "request canceled", Err: err}
	}
	return &RetryableError{Channel: ch, Reason: "request failed", Err: err}
}

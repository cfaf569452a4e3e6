package marketplace

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from a marketplace endpoint.
type APIError struct {
	Endpoint string
	Account  string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("marketplace: %s for %s: status %d", e.Endpoint, e.Account, e.Status)
	}
	return fmt.Sprintf("marketplace: %s for %s: status %d: %s", e.Endpoint, e.Account, e.Status, e.Body)
}

// Retryable reports whether the request may succeed if repeated later.
func (e *APIError) Retryable() bool { return isRetryableStatus(e.Status) }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

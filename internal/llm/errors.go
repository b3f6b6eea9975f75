package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrQuotaExceeded indicates the provider rejected the request because
	// the account is out of quota or rate limited at the account level.
	// Retrying will not help until the quota resets.
	ErrQuotaExceeded = errors.New("provider quota exceeded")

	// ErrInvalidCredentials indicates the API key was rejected. Retrying
	// with the same key will not help.
	ErrInvalidCredentials = errors.New("invalid provider credentials")
)

// IsFatal reports whether an error should not be retried: quota exhaustion
// and bad credentials fail the same way on every attempt.
func IsFatal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidCredentials)
}

// statusError maps a non-200 provider response to an error, classifying
// quota and credential failures so callers can skip retries.
func statusError(provider string, status int, body []byte) error {
	switch status {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrQuotaExceeded, provider, status, string(body))
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrInvalidCredentials, provider, status, string(body))
	default:
		return fmt.Errorf("%s returned status %d: %s", provider, status, string(body))
	}
}

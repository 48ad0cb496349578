package domain

import (
	"errors"
	"fmt"
)

// Fatal conditions surfaced to the caller. Everything else is absorbed into
// per-article state.
var (
	// ErrCredentialsMissing means the resolver could not produce the
	// mandatory keys; raised before any network call is issued.
	ErrCredentialsMissing = errors.New("credentials missing")

	// ErrNoResults means the source returned zero articles even after the
	// undated retry.
	ErrNoResults = errors.New("no articles found")

	// ErrCooldownActive means a run was attempted inside the cooldown window.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrRecordAbsent is returned by credential stores for missing records.
	ErrRecordAbsent = errors.New("credential record absent")
)

// ErrorKind classifies provider failures into the shared taxonomy.
type ErrorKind string

const (
	// KindAuthorization: the key itself is invalid; aborts the whole run.
	KindAuthorization ErrorKind = "authorization"
	// KindRateLimited: quota exhausted; retried after a long fixed backoff.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransient: timeouts, 5xx, malformed responses; retried briefly.
	KindTransient ErrorKind = "transient"
)

// ProviderError normalizes vendor-specific failure shapes.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// IsAuthorization reports whether err carries an invalid-key signal.
func IsAuthorization(err error) bool {
	return hasKind(err, KindAuthorization)
}

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	return hasKind(err, KindRateLimited)
}

func hasKind(err error, kind ErrorKind) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == kind
}

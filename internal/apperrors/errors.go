// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// ErrRepositoryNotFound signals that a sync call referenced a repository
// that has not been mirrored yet; repositories must be synced first.
var ErrRepositoryNotFound = errors.New("repository not found in local store")

// RateLimitError is returned when the upstream kept answering 429 until the
// retry budget ran out.
type RateLimitError struct {
	RetryAfter time.Duration
	Attempts   int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts (retry after %s)", e.Attempts, e.RetryAfter)
}

// HTTPError is a non-retryable upstream response (4xx other than 429).
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is an upstream 404. Empty and draft pull
// requests surface their missing commit lists this way.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == 404
}

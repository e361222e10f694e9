package index

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrLookupFailed wraps every failure of a package-index lookup.
	ErrLookupFailed = errors.New("package index lookup failed")
	// ErrDownloadFailed wraps every failure of a source archive download.
	ErrDownloadFailed = errors.New("source download failed")
	// ErrNotFound is returned when the index has no such package.
	ErrNotFound = errors.New("not found")
	// ErrNoSourceDist is returned when no release carries a source distribution.
	ErrNoSourceDist = errors.New("no source distribution")
	// ErrUpstreamDown is returned when the breaker for a host is open.
	ErrUpstreamDown = errors.New("package index unavailable")
)

// HTTPError represents an unexpected HTTP response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Unwrap maps 404 responses onto ErrNotFound.
func (e *HTTPError) Unwrap() error {
	if e.IsNotFound() {
		return ErrNotFound
	}
	return nil
}

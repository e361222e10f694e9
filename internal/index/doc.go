// Package index talks to the Python package index for the source-build
// fallback: it looks up a package's source distribution URL and version from
// the JSON API and downloads the archive. Every request is a single attempt;
// a per-host circuit breaker stops hammering an index that keeps failing
// within one batch.
package index

package domain

import "errors"

var (
	// ErrFetch is a transport failure or a non-success status from GitHub.
	ErrFetch = errors.New("fetch failed")
	// ErrDeserialize is a malformed response body.
	ErrDeserialize = errors.New("malformed response")
	// ErrProfileNotFound means the profile endpoint returned no usable record.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNoWatchers is returned when watchers are required but none were found.
	ErrNoWatchers = errors.New("repository has no watchers")
	// ErrInvalidInput is a missing or malformed owner/repo identifier.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRepositoryNotFound covers unknown and private repositories.
	ErrRepositoryNotFound = errors.New("repository not found or private")
	// ErrQuotaExceeded is an exhausted GitHub rate limit.
	ErrQuotaExceeded = errors.New("rate limit quota exceeded")
	// ErrTimeout is an expired page timeout or run deadline.
	ErrTimeout = errors.New("timed out")
)

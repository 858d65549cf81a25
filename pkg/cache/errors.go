package cache

import "errors"

var (
	// ErrNotFound is returned when a task has no stored result.
	ErrNotFound = errors.New("not found")

	// ErrNetwork marks a failure to reach a remote store. [WithRetry]
	// repeats calls that fail with it.
	ErrNetwork = errors.New("network error")
)

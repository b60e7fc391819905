package domain

import "errors"

var (
	ErrAttemptNotFound = errors.New("index attempt not found")
	ErrNoCurrentModel  = errors.New("no embedding model is marked present")

	// ErrSwapInvariantViolated is raised by the Swap Controller when more
	// distinct cc-pairs have been attempted against the FUTURE model than
	// are eligible. This should never occur; it signals a bug in attempt
	// creation or in the eligible-pair count, not a transient condition.
	ErrSwapInvariantViolated = errors.New("more distinct cc-pair attempts than eligible cc-pairs")
)

package core

import "errors"

// Sentinel errors separating the two true failure classes from data
// conditions (which are modeled as MatchingIssue, never as errors).
// Wrap with fmt.Errorf("%w: ...") so callers can errors.Is them.
var (
	// ErrNotFound: a referenced invoice, PO, pair, issue, or queue item
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest: a precondition violation such as resolving an
	// already-resolved issue or batch-processing an empty id list.
	ErrInvalidRequest = errors.New("invalid request")
)

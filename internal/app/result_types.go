package app

import "ap-reconciler/internal/core"

// BatchResult is returned by ProcessBatch. Results and Failures partition the
// requested invoice ids.
type BatchResult struct {
	Processed int                   `json:"processed"`
	Failed    int                   `json:"failed"`
	Results   []core.MatchingResult `json:"results"`
	Failures  []core.BatchError     `json:"errors,omitempty"`
}

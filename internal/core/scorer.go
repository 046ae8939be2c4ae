package core

// ScoreIssues folds all findings of a matching run into the final status and
// confidence. No issues means a clean match at full confidence; any critical
// issue zeroes the confidence outright. Otherwise confidence starts from the
// weight of the worst non-critical severity and is reduced by 0.1 per issue,
// capped at a 0.5 penalty.
func ScoreIssues(issues []MatchingIssue) (MatchStatus, float64) {
	if len(issues) == 0 {
		return StatusMatched, 1.0
	}
	if HasCritical(issues) {
		return StatusNeedsReview, 0.0
	}

	minConfidence := 1.0
	for _, it := range issues {
		if w := severityWeight(it.Severity); w < minConfidence {
			minConfidence = w
		}
	}

	penalty := 0.1 * float64(len(issues))
	if penalty > 0.5 {
		penalty = 0.5
	}

	confidence := minConfidence - penalty
	if confidence < 0 {
		confidence = 0
	}
	return StatusNeedsReview, confidence
}

func severityWeight(s Severity) float64 {
	switch s {
	case SeverityHigh:
		return 0.3
	case SeverityMedium:
		return 0.5
	case SeverityLow:
		return 0.7
	default:
		return 0.5
	}
}

package core

// stageOrder encodes the forward-only stage progression. Stages absent from
// the table (approved) have no outgoing transition; advancing from them is a
// no-op rather than an error.
var stageOrder = map[Stage]Stage{
	StageMatched:   StageValidated,
	StageValidated: StageApproved,
}

// NextStage returns the stage after s and whether a forward transition is
// defined. The stage axis never regresses.
func NextStage(s Stage) (Stage, bool) {
	next, ok := stageOrder[s]
	return next, ok
}

// terminalStatuses: once a pair is approved or rejected its status axis is
// frozen; only the reject action may leave a non-terminal status.
func (s PairStatus) Terminal() bool {
	return s == PairApproved || s == PairRejected
}

// InitialPairStatus derives the status axis of a freshly created pair from
// its matching outcome.
func InitialPairStatus(matchStatus MatchStatus) PairStatus {
	if matchStatus == StatusNeedsReview {
		return PairNeedsReview
	}
	return PairInProgress
}

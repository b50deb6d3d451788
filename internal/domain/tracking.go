package domain

import "fmt"

// TrackingKey is the ledger line marking one fully processed revision.
// The format is part of the tracking file's wire contract.
func TrackingKey(changeID, revisionID string) string {
	return fmt.Sprintf("%s:%s", changeID, revisionID)
}

// CycleOutcome describes what happened to one change in one poll cycle.
type CycleOutcome int

const (
	// OutcomeSkipped means the revision was already in the tracking store.
	OutcomeSkipped CycleOutcome = iota
	// OutcomeNoEligibleFiles means the filter rejected every changed file.
	OutcomeNoEligibleFiles
	// OutcomeNothingToPost means reviews ran but every result was clean.
	OutcomeNothingToPost
	// OutcomePosted means an aggregated comment was submitted successfully.
	OutcomePosted
	// OutcomePostFailed means posting failed twice; the change retries next cycle.
	OutcomePostFailed
	// OutcomeErrored means processing failed before a post could be attempted.
	OutcomeErrored
)

// String returns the outcome name used in logs and the history store.
func (o CycleOutcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoEligibleFiles:
		return "no_eligible_files"
	case OutcomeNothingToPost:
		return "nothing_to_post"
	case OutcomePosted:
		return "posted"
	case OutcomePostFailed:
		return "post_failed"
	case OutcomeErrored:
		return "errored"
	default:
		return "unknown"
	}
}

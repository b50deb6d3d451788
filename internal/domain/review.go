package domain

import "strings"

// NoIssuesSentinel is the exact phrase the review backend is instructed to
// answer with when a file has nothing worth commenting on. It is produced by
// the prompt templates and consumed by ClassifyReview; nothing else should
// compare against it.
const NoIssuesSentinel = "No issues found"

// Sentinel prefixes for degraded generator results. These come back through
// the same text channel as real reviews, so the classifier has to recognize
// them before the orchestrator decides what to post.
const (
	TimeoutSentinel       = "Review generation timed out"
	FailureSentinelPrefix = "Review generation failed:"
)

// ReviewKind tags the outcome of generating a review for one file.
type ReviewKind int

const (
	// ReviewNoFindings means the backend answered with the no-issues sentinel.
	ReviewNoFindings ReviewKind = iota
	// ReviewFindings means the backend produced review text worth posting.
	ReviewFindings
	// ReviewGenerationFailed covers timeouts and backend invocation failures.
	ReviewGenerationFailed
)

// ReviewResult is the tagged outcome for a single file's review.
type ReviewResult struct {
	Kind ReviewKind
	Text string
}

// ClassifyReview converts raw generator output into a tagged result.
// Sentinel matching is exact on the trimmed text: a review that merely
// mentions the sentinel phrase inside a longer critique still counts as
// findings.
func ClassifyReview(raw string) ReviewResult {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return ReviewResult{Kind: ReviewNoFindings}
	case trimmed == NoIssuesSentinel:
		return ReviewResult{Kind: ReviewNoFindings}
	case trimmed == TimeoutSentinel, strings.HasPrefix(trimmed, FailureSentinelPrefix):
		return ReviewResult{Kind: ReviewGenerationFailed, Text: trimmed}
	default:
		return ReviewResult{Kind: ReviewFindings, Text: trimmed}
	}
}

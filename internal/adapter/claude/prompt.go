package claude

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

const (
	// minUsefulContentBytes is the threshold below which full-file content
	// adds nothing over the diff itself.
	minUsefulContentBytes = 50

	// maxContextTokens caps the estimated token cost of full-file context.
	// One CLI session serves every file in every change, so oversized
	// context burns the shared budget.
	maxContextTokens = 8000

	// diffMarkerThreshold is the minimum count of added/removed lines for
	// marker-less output to still be treated as a line-level diff.
	diffMarkerThreshold = 5
)

var hunkHeaderPattern = regexp.MustCompile(`(?m)^@@ -\d+(,\d+)? \+\d+(,\d+)? @@`)

// hasLineDiffMarkers reports whether diffText plausibly contains a real
// line-level diff rather than a metadata summary.
func hasLineDiffMarkers(diffText string) bool {
	if hunkHeaderPattern.MatchString(diffText) {
		return true
	}

	markers := 0
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			markers++
			if markers >= diffMarkerThreshold {
				return true
			}
		}
	}
	return false
}

// usableContent decides whether fullContent is worth attaching: long enough
// to be informative, small enough for the token budget.
func usableContent(fullContent string) bool {
	if len(fullContent) <= minUsefulContentBytes {
		return false
	}
	return EstimateTokens(fullContent) <= maxContextTokens
}

// buildPrompt assembles the review prompt. Template choice follows the
// input: line-level diffs get a cite-the-lines instruction, metadata
// summaries get a review-from-summary instruction, and usable full content
// adds cross-file consistency checks.
func buildPrompt(path, diffText, fullContent string) string {
	var b strings.Builder

	withContent := usableContent(fullContent)

	if withContent {
		b.WriteString("Review the following code change together with the full file for context:\n\n")
	} else {
		b.WriteString("Review the following code change:\n\n")
	}
	fmt.Fprintf(&b, "File: %s\n\n", path)

	if withContent {
		b.WriteString("Current full file content:\n```\n")
		b.WriteString(fullContent)
		b.WriteString("\n```\n\n")
	}

	if hasLineDiffMarkers(diffText) {
		b.WriteString("Changed content (diff):\n```diff\n")
		b.WriteString(diffText)
		b.WriteString("\n```\n\n")
		b.WriteString("Cite the specific changed lines you are commenting on.\n")
	} else {
		b.WriteString("Change summary (no line-level diff is available):\n```\n")
		b.WriteString(diffText)
		b.WriteString("\n```\n\n")
		b.WriteString("Review from this summary only; do not invent line-level details.\n")
	}

	b.WriteString("Evaluate:\n")
	if withContent {
		b.WriteString("1. Consistency of the change with the overall file structure\n")
		b.WriteString("2. Whether names match the existing style and call sites stay compatible\n")
		b.WriteString("3. Bugs or logic errors\n")
		b.WriteString("4. Performance issues and security vulnerabilities\n")
		b.WriteString("5. Test coverage needs\n")
	} else {
		b.WriteString("1. Bugs or logic errors\n")
		b.WriteString("2. Performance issues\n")
		b.WriteString("3. Security vulnerabilities\n")
		b.WriteString("4. Coding style and best practices\n")
		b.WriteString("5. Test coverage needs\n")
	}

	fmt.Fprintf(&b, "\nGive concrete, actionable feedback. If there is nothing worth raising, reply with exactly %q.", domain.NoIssuesSentinel)

	return b.String()
}

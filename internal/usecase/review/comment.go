package review

import (
	"strings"
	"unicode/utf8"
)

const (
	commentHeader = "🤖 **Claude Automated Code Review**\n\n"
	commentFooter = "\n\n---\n*This review was generated automatically by Claude AI. Treat it as advisory; a human makes the final call.*"

	truncationNotice = "\n\n... [review truncated: comment size limit reached]"

	genericSummary = "Automated review produced findings, but the full text exceeded the comment size limit. Please run the reviewer locally for details."

	// summaryLineCap bounds the fallback summary built after a size-limit
	// rejection.
	summaryLineCap = 12

	// minSummaryLines is the point below which an extracted summary is too
	// thin to be worth posting over the generic message.
	minSummaryLines = 2
)

// Fragment is one file's contribution to the aggregated comment.
type Fragment struct {
	Path string
	Text string
}

// BuildComment aggregates fragments into the posted comment, enforcing the
// byte ceiling. Truncation lands on a rune boundary strictly under the limit
// and always leaves the truncation notice as the tail.
func BuildComment(fragments []Fragment, maxBytes int) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, "**"+f.Path+"**\n"+f.Text)
	}

	comment := commentHeader + strings.Join(parts, "\n\n") + commentFooter
	if maxBytes <= 0 || len(comment) < maxBytes {
		return comment
	}

	keep := maxBytes - len(truncationNotice) - 1
	if keep < 0 {
		keep = 0
	}
	return truncateUTF8(comment, keep) + truncationNotice
}

// BuildSummaryComment synthesizes a short replacement after the server
// rejected the full comment for size. It keeps only heading, emphasis, and
// list-marker lines, capped at summaryLineCap, and falls back to a fixed
// generic message when too little survives extraction.
func BuildSummaryComment(fullComment string, maxBytes int) string {
	var kept []string
	for _, line := range strings.Split(fullComment, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isSummaryLine(trimmed) {
			kept = append(kept, trimmed)
			if len(kept) >= summaryLineCap {
				break
			}
		}
	}

	body := genericSummary
	if len(kept) > minSummaryLines {
		body = strings.Join(kept, "\n")
	}

	comment := commentHeader + body + commentFooter
	if maxBytes > 0 && len(comment) >= maxBytes {
		keep := maxBytes - len(truncationNotice) - 1
		if keep < 0 {
			keep = 0
		}
		comment = truncateUTF8(comment, keep) + truncationNotice
	}
	return comment
}

// isSummaryLine keeps the lines that carry structure: headings, bold file
// markers, and list items.
func isSummaryLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "**") ||
		strings.HasPrefix(trimmed, "- ") ||
		strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ")
}

// truncateUTF8 cuts s to at most n bytes without splitting a multi-byte
// character.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

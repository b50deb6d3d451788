package gerrit

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// File categories inferred from the path when no real diff is available.
const (
	categoryWebsocket = "websocket"
	categoryAPI       = "api"
	categoryConfig    = "configuration"
	categoryScript    = "script"
	categorySource    = "source code"
)

var configExtensions = map[string]struct{}{
	".yaml": {}, ".yml": {}, ".json": {}, ".cfg": {}, ".ini": {}, ".toml": {}, ".conf": {},
}

var scriptExtensions = map[string]struct{}{
	".sh": {}, ".bash": {}, ".bat": {}, ".py": {},
}

// inferCategory guesses what kind of file changed from path heuristics.
func inferCategory(filePath string) string {
	lower := strings.ToLower(filePath)
	ext := path.Ext(lower)
	switch {
	case strings.Contains(lower, "websocket"), strings.Contains(lower, "ws_"):
		return categoryWebsocket
	case strings.Contains(lower, "api"), strings.Contains(lower, "connector"):
		return categoryAPI
	default:
		if _, ok := configExtensions[ext]; ok {
			return categoryConfig
		}
		if _, ok := scriptExtensions[ext]; ok {
			return categoryScript
		}
		return categorySource
	}
}

// inferMagnitude buckets the change size.
func inferMagnitude(linesChanged int) string {
	switch {
	case linesChanged < 20:
		return "small"
	case linesChanged < 100:
		return "medium"
	default:
		return "large"
	}
}

// inferPattern describes the add/delete balance.
func inferPattern(inserted, deleted int) string {
	switch {
	case inserted > deleted*2:
		return "mostly additions"
	case deleted > inserted*2:
		return "mostly deletions"
	default:
		return "balanced additions and deletions"
	}
}

// enhancedSummary builds the tier-b change description from metadata and
// path heuristics. It reads like prose because it is fed to the review
// backend in place of a real diff.
func enhancedSummary(change domain.Change, info domain.FileInfo) string {
	titler := cases.Title(language.English)
	ext := strings.TrimPrefix(path.Ext(info.Path), ".")
	fileType := "Unknown"
	if ext != "" {
		fileType = strings.ToUpper(ext)
	}

	var b strings.Builder
	b.WriteString("=== File Change Analysis ===\n")
	fmt.Fprintf(&b, "Project: %s\n", change.Project)
	fmt.Fprintf(&b, "Commit subject: %s\n\n", change.Subject)
	fmt.Fprintf(&b, "File: %s\n", info.Path)
	fmt.Fprintf(&b, "File type: %s file\n", fileType)
	fmt.Fprintf(&b, "Change kind: %s\n", info.ChangeKind)
	fmt.Fprintf(&b, "Lines added: %d\n", info.LinesInserted)
	fmt.Fprintf(&b, "Lines removed: %d\n", info.LinesDeleted)
	fmt.Fprintf(&b, "Total churn: %d lines\n\n", info.LinesChanged())
	b.WriteString("=== Inferred Context ===\n")
	fmt.Fprintf(&b, "1. Path suggests a %s file.\n", inferCategory(info.Path))
	fmt.Fprintf(&b, "2. %s change (%d lines).\n",
		titler.String(inferMagnitude(info.LinesChanged())), info.LinesChanged())
	fmt.Fprintf(&b, "3. Change pattern: %s.\n\n", inferPattern(info.LinesInserted, info.LinesDeleted))
	b.WriteString("=== Review Guidance ===\n")
	b.WriteString("- Weigh the file type and change size when judging risk.\n")
	fmt.Fprintf(&b, "- Verify the change against the stated subject: %s\n", change.Subject)
	b.WriteString("- Check whether the change needs accompanying tests.")
	return b.String()
}

// basicSummary is the minimal tier-b fallback in diff-header clothing, used
// when the change metadata needed for the enhanced summary is missing.
func basicSummary(info domain.FileInfo) string {
	return fmt.Sprintf(`--- a/%s
+++ b/%s
@@ File Change Summary @@
File: %s
Change Kind: %s
Lines Added: %d
Lines Removed: %d
Total Changes: %d lines

Note: Detailed diff content not available.
Review based on file path, change kind, and modification statistics.`,
		info.Path, info.Path, info.Path, info.ChangeKind,
		info.LinesInserted, info.LinesDeleted, info.LinesChanged())
}

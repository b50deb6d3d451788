// Package filter decides which changed files are worth sending to review.
package filter

import (
	"path"
	"strings"
)

// reviewExtensions is the allow-list of file extensions eligible for review.
var reviewExtensions = map[string]struct{}{
	// Source code
	".py": {}, ".java": {}, ".js": {}, ".ts": {}, ".go": {}, ".rs": {},
	".cpp": {}, ".c": {}, ".h": {},
	".kt": {}, ".scala": {}, ".rb": {}, ".php": {}, ".swift": {}, ".dart": {},
	// Shell scripts
	".sh": {}, ".bash": {}, ".zsh": {}, ".fish": {},
	// Config and serialization formats
	".yaml": {}, ".yml": {}, ".json": {}, ".xml": {}, ".toml": {},
	".cfg": {}, ".ini": {}, ".conf": {},
	// Container builds
	".dockerfile": {}, ".containerfile": {},
	// Docs and data
	".sql": {}, ".md": {}, ".txt": {},
}

// excludePatterns reject files living in test, dependency, build output, or
// generated-code locations. Matched case-insensitively as substrings of the
// full path.
var excludePatterns = []string{
	"test/",
	"tests/",
	"__pycache__/",
	"node_modules/",
	".git/",
	"build/",
	"dist/",
	"target/",
	"vendor/",
	"generated/",
	"auto-generated",
}

// ShouldReview reports whether a file path is in scope for automated review.
// It is total: any string input, including empty paths and paths without an
// extension, yields a decision without panicking.
func ShouldReview(filePath string) bool {
	ext := strings.ToLower(path.Ext(filePath))
	if ext == "" {
		return false
	}
	if _, ok := reviewExtensions[ext]; !ok {
		return false
	}

	lower := strings.ToLower(filePath)
	for _, pattern := range excludePatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	return true
}

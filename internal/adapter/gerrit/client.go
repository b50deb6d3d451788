// Package gerrit implements the change-source port against a Gerrit server's
// SSH command interface, with a REST fallback for file content.
package gerrit

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// Logger is the structured logging surface the client reports through.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Client talks to Gerrit. Every listing or posting method degrades to an
// empty or false result on failure; transport errors are logged here and
// never reach the orchestrator.
type Client struct {
	runner     CommandRunner
	diffs      DiffProvider
	logger     Logger
	httpBase   string
	httpClient *http.Client
}

// Options configures optional collaborator behavior.
type Options struct {
	// DiffProvider supplies tier-a line-level diffs. Nil skips straight to
	// the metadata summary tier.
	DiffProvider DiffProvider

	// HTTPBase is the base URL for REST file-content fetches, e.g.
	// "http://gerrit.example.com". Empty disables content fetching.
	HTTPBase string

	// HTTPTimeout bounds one content fetch. Zero means 10 seconds.
	HTTPTimeout time.Duration
}

// NewClient constructs a Gerrit client over the given command runner.
func NewClient(runner CommandRunner, logger Logger, opts Options) *Client {
	timeout := opts.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		runner:     runner,
		diffs:      opts.DiffProvider,
		logger:     logger,
		httpBase:   strings.TrimRight(opts.HTTPBase, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BuildQuery constructs the open-changes query, optionally bounded by a
// staleness window in Gerrit age syntax.
func BuildQuery(queryAge string) string {
	query := "status:open NOT is:wip"
	if queryAge != "" {
		query += " age:" + queryAge
	}
	return query
}

// ListOpenChanges returns the changes matching the query, with current
// patchset metadata. A transport failure yields an empty slice so one
// outage cannot abort the poll cycle.
func (c *Client) ListOpenChanges(ctx context.Context, query string) []domain.Change {
	command := fmt.Sprintf("query --format=JSON --current-patch-set %s", shellQuote(query))
	output, err := c.runner.Run(ctx, command)
	if err != nil {
		c.logger.LogError(ctx, "gerrit query failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return nil
	}

	var changes []domain.Change
	for _, record := range parseQueryLines(output) {
		if record.Number == 0 {
			continue
		}
		changes = append(changes, mapChange(record))
	}
	return changes
}

// ListChangedFiles returns the files of the change's current patchset,
// excluding the commit-message pseudo-file. Returns an empty map on failure.
func (c *Client) ListChangedFiles(ctx context.Context, changeNumber int) map[string]domain.FileInfo {
	command := fmt.Sprintf("query --files --current-patch-set --format=JSON change:%d", changeNumber)
	output, err := c.runner.Run(ctx, command)
	if err != nil {
		c.logger.LogError(ctx, "gerrit file listing failed", map[string]interface{}{
			"change": changeNumber,
			"error":  err.Error(),
		})
		return map[string]domain.FileInfo{}
	}

	for _, record := range parseQueryLines(output) {
		if record.CurrentPatchSet != nil {
			return mapFiles(record.CurrentPatchSet)
		}
	}
	return map[string]domain.FileInfo{}
}

// GetFileDiff returns the best change representation available for one file,
// degrading from a real line-level diff through a metadata summary to an
// empty string. Callers treat empty as "skip this file."
func (c *Client) GetFileDiff(ctx context.Context, change domain.Change, info domain.FileInfo) string {
	if c.diffs != nil {
		diff, err := c.diffs.FileDiff(ctx, change, info.Path)
		if err == nil && diff != "" {
			return diff
		}
		if err != nil {
			c.logger.LogDebug(ctx, "line-level diff unavailable, falling back to summary", map[string]interface{}{
				"change": change.Number,
				"path":   info.Path,
				"error":  err.Error(),
			})
		}
	}

	if change.Project != "" || change.Subject != "" {
		return enhancedSummary(change, info)
	}
	if info.Path != "" {
		return basicSummary(info)
	}
	return ""
}

// GetFileContent fetches the full current content of a file over the REST
// API. Content is supplementary context: any failure returns an empty string.
func (c *Client) GetFileContent(ctx context.Context, changeNumber int, path string) string {
	if c.httpBase == "" {
		return ""
	}

	endpoint := fmt.Sprintf("%s/changes/%d/revisions/current/files/%s/content",
		c.httpBase, changeNumber, url.PathEscape(path))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ""
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogDebug(ctx, "file content fetch failed", map[string]interface{}{
			"change": changeNumber,
			"path":   path,
			"error":  err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.LogDebug(ctx, "file content fetch rejected", map[string]interface{}{
			"change": changeNumber,
			"path":   path,
			"status": resp.StatusCode,
		})
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	// Gerrit serves file content base64-encoded.
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return ""
	}
	return string(decoded)
}

// PostComment submits a review comment, optionally with a Code-Review score.
// Returns false on any failure, including size rejection by the server.
func (c *Client) PostComment(ctx context.Context, changeNumber, patchsetNumber int, message string, score int) bool {
	command := fmt.Sprintf("review --message %s", shellQuote(message))
	if score != 0 {
		command += fmt.Sprintf(" --code-review %d", score)
	}
	command += fmt.Sprintf(" %d,%d", changeNumber, patchsetNumber)

	if _, err := c.runner.Run(ctx, command); err != nil {
		c.logger.LogError(ctx, "posting review comment failed", map[string]interface{}{
			"change": changeNumber,
			"error":  err.Error(),
		})
		return false
	}
	return true
}

// Version runs the gerrit version command as a connectivity probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	output, err := c.runner.Run(ctx, "version")
	if err != nil {
		return "", fmt.Errorf("gerrit version: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// shellQuote wraps s in single quotes for the Gerrit command line, escaping
// embedded single quotes the POSIX way.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

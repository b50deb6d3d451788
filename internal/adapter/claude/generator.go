// Package claude implements the review-generator port by driving the Claude
// CLI as a subprocess.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// Logger is the structured logging surface the generator reports through.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Generator invokes the Claude CLI once per file. Failures and timeouts are
// surfaced as sentinel review text, never as errors: the orchestrator treats
// a degraded generation like a clean file and moves on.
type Generator struct {
	command string
	timeout time.Duration
	logger  Logger
}

// NewGenerator builds a generator around the given CLI command.
func NewGenerator(command string, timeout time.Duration, logger Logger) *Generator {
	if command == "" {
		command = "claude"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{command: command, timeout: timeout, logger: logger}
}

// ReviewFile asks the backend to review one file and returns the raw review
// text, the no-issues sentinel, or a failure sentinel.
func (g *Generator) ReviewFile(ctx context.Context, path, diffText, fullContent string) string {
	prompt := buildPrompt(path, diffText, fullContent)

	output, err := g.invoke(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.LogError(ctx, "review generation timed out", map[string]interface{}{
				"path":    path,
				"timeout": g.timeout.String(),
			})
			return domain.TimeoutSentinel
		}
		g.logger.LogError(ctx, "review generation failed", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return fmt.Sprintf("%s %v", domain.FailureSentinelPrefix, err)
	}

	return extractAssistantText(output)
}

// Ping verifies the CLI backend is reachable and responding.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.invoke(ctx, "Reply with the single word OK.")
	if err != nil {
		return fmt.Errorf("claude cli ping: %w", err)
	}
	return nil
}

func (g *Generator) invoke(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, g.command, "--print", prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		return "", runCtx.Err()
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", errors.New(detail)
	}
	return stdout.String(), nil
}

// turnRecord is one entry of a structured conversation transcript some CLI
// versions emit instead of plain text.
type turnRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// extractAssistantText returns the content of the last assistant turn when
// the output is a JSON transcript, and the trimmed raw output otherwise.
func extractAssistantText(raw string) string {
	trimmed := strings.TrimSpace(raw)

	var turns []turnRecord
	if err := json.Unmarshal([]byte(trimmed), &turns); err != nil || len(turns) == 0 {
		return trimmed
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "assistant" {
			return strings.TrimSpace(turns[i].Content)
		}
	}
	return trimmed
}

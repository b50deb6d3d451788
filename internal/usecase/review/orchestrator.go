// Package review drives the poll-review-post pipeline.
package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/filter"
)

// ChangeSource is the outbound port for the review server. Every method
// degrades to an empty or false result on failure; the orchestrator's
// control flow never sees transport errors.
type ChangeSource interface {
	ListOpenChanges(ctx context.Context, query string) []domain.Change
	ListChangedFiles(ctx context.Context, changeNumber int) map[string]domain.FileInfo
	GetFileDiff(ctx context.Context, change domain.Change, info domain.FileInfo) string
	GetFileContent(ctx context.Context, changeNumber int, path string) string
	PostComment(ctx context.Context, changeNumber, patchsetNumber int, message string, score int) bool
}

// Generator is the outbound port for review generation. Failures come back
// as sentinel text, classified by domain.ClassifyReview.
type Generator interface {
	ReviewFile(ctx context.Context, path, diffText, fullContent string) string
}

// Tracker is the idempotency ledger port.
type Tracker interface {
	IsReviewed(changeID, revisionID string) (bool, error)
	MarkReviewed(changeID, revisionID string) error
}

// StoreRun mirrors one poll cycle for the optional history store.
type StoreRun struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	ChangesSeen  int
	ChangesDone  int
	ChangeErrors int
}

// StoreOutcome mirrors one change's outcome for the optional history store.
type StoreOutcome struct {
	RunID        string
	ChangeNumber int
	ChangeID     string
	Revision     string
	Subject      string
	Outcome      string
	Fragments    int
	PostedBytes  int
	CreatedAt    time.Time
}

// HistoryStore is the optional history persistence port.
type HistoryStore interface {
	CreateRun(ctx context.Context, run StoreRun) error
	FinishRun(ctx context.Context, run StoreRun) error
	SaveOutcome(ctx context.Context, outcome StoreOutcome) error
}

// Params bounds one poll cycle's work.
type Params struct {
	// Query is the change-source filter expression for open changes.
	Query string

	// MaxLinesChanged skips files whose churn exceeds the cap.
	MaxLinesChanged int

	// MaxContentBytes discards full-file context above this size.
	MaxContentBytes int

	// MaxCommentBytes is the posted-comment ceiling.
	MaxCommentBytes int

	// InterChangeDelay is applied after each change, successful or not.
	InterChangeDelay time.Duration
}

// Deps captures the orchestrator's collaborators. Store and Logger are
// optional; Now and Sleep default to the real clock.
type Deps struct {
	Source    ChangeSource
	Generator Generator
	Tracker   Tracker
	Store     HistoryStore
	Logger    Logger
	Now       func() time.Time
	Sleep     func(time.Duration)
}

// CycleStats summarizes one poll cycle.
type CycleStats struct {
	ChangesSeen  int
	Skipped      int
	Posted       int
	NothingToDo  int
	PostFailures int
	Errors       int
}

// ChangeReport is the per-change result surfaced to callers and tests.
type ChangeReport struct {
	Change    domain.Change
	Outcome   domain.CycleOutcome
	Fragments int
	Posted    int // bytes actually posted
}

// Orchestrator implements the per-change review state machine over one
// sequential worker. The generator backend is one shared rate-sensitive
// session and posting must serialize against the tracker, so there is no
// fan-out across changes or files.
type Orchestrator struct {
	deps   Deps
	params Params
}

// NewOrchestrator wires the orchestrator dependencies.
func NewOrchestrator(deps Deps, params Params) (*Orchestrator, error) {
	if deps.Source == nil {
		return nil, errors.New("change source is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("review generator is required")
	}
	if deps.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	return &Orchestrator{deps: deps, params: params}, nil
}

// ProcessChanges runs one full poll cycle: list, dedup-check, review, post,
// mark. Failures in one change never abort its siblings; only context
// cancellation stops the loop early.
func (o *Orchestrator) ProcessChanges(ctx context.Context) CycleStats {
	log := o.deps.Logger
	started := o.deps.Now()
	runID := generateRunID(started)

	if o.deps.Store != nil {
		if err := o.deps.Store.CreateRun(ctx, StoreRun{RunID: runID, StartedAt: started}); err != nil {
			log.LogWarning(ctx, "failed to create history run record", map[string]interface{}{
				"runID": runID,
				"error": err.Error(),
			})
		}
	}

	changes := o.deps.Source.ListOpenChanges(ctx, o.params.Query)
	log.LogInfo(ctx, "poll cycle started", map[string]interface{}{
		"runID":   runID,
		"changes": len(changes),
	})

	var stats CycleStats
	stats.ChangesSeen = len(changes)

	for _, change := range changes {
		if ctx.Err() != nil {
			break
		}

		report := o.processChange(ctx, change)
		o.recordOutcome(ctx, runID, report)

		switch report.Outcome {
		case domain.OutcomeSkipped:
			stats.Skipped++
		case domain.OutcomePosted:
			stats.Posted++
		case domain.OutcomeNoEligibleFiles, domain.OutcomeNothingToPost:
			stats.NothingToDo++
		case domain.OutcomePostFailed:
			stats.PostFailures++
		case domain.OutcomeErrored:
			stats.Errors++
		}

		// Skipped changes did no remote work, so they don't owe the
		// rate-limit pause.
		if report.Outcome != domain.OutcomeSkipped {
			o.deps.Sleep(o.params.InterChangeDelay)
		}
	}

	if o.deps.Store != nil {
		err := o.deps.Store.FinishRun(ctx, StoreRun{
			RunID:        runID,
			StartedAt:    started,
			FinishedAt:   o.deps.Now(),
			ChangesSeen:  stats.ChangesSeen,
			ChangesDone:  stats.Posted + stats.NothingToDo,
			ChangeErrors: stats.PostFailures + stats.Errors,
		})
		if err != nil {
			log.LogWarning(ctx, "failed to finish history run record", map[string]interface{}{
				"runID": runID,
				"error": err.Error(),
			})
		}
	}

	log.LogInfo(ctx, "poll cycle finished", map[string]interface{}{
		"runID":        runID,
		"posted":       stats.Posted,
		"skipped":      stats.Skipped,
		"nothingToDo":  stats.NothingToDo,
		"postFailures": stats.PostFailures,
		"errors":       stats.Errors,
	})
	return stats
}

// processChange runs the state machine for one change. Panics are contained
// at this boundary so a malformed change cannot take down the cycle.
func (o *Orchestrator) processChange(ctx context.Context, change domain.Change) (report ChangeReport) {
	log := o.deps.Logger
	report = ChangeReport{Change: change}

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = domain.OutcomeErrored
			log.LogError(ctx, "change processing panicked", map[string]interface{}{
				"change":  change.Number,
				"subject": change.Subject,
				"panic":   fmt.Sprint(r),
			})
		}
	}()

	reviewed, err := o.deps.Tracker.IsReviewed(change.ChangeID, change.CurrentRevision)
	if err != nil {
		// An unreadable ledger means we may re-review; that is the safe
		// direction for an at-least-once pipeline.
		log.LogWarning(ctx, "tracking lookup failed, treating change as unreviewed", map[string]interface{}{
			"change": change.Number,
			"error":  err.Error(),
		})
	}
	if reviewed {
		log.LogDebug(ctx, "change already reviewed", map[string]interface{}{
			"change":   change.Number,
			"revision": change.CurrentRevision,
		})
		report.Outcome = domain.OutcomeSkipped
		return report
	}

	log.LogInfo(ctx, "reviewing change", map[string]interface{}{
		"change":  change.Number,
		"subject": change.Subject,
	})

	files := o.deps.Source.ListChangedFiles(ctx, change.Number)
	eligible := o.eligibleFiles(ctx, change, files)
	if len(eligible) == 0 {
		report.Outcome = domain.OutcomeNoEligibleFiles
		o.markReviewed(ctx, change, &report)
		return report
	}

	fragments := o.reviewFiles(ctx, change, eligible)
	report.Fragments = len(fragments)

	if len(fragments) == 0 {
		log.LogInfo(ctx, "no findings to post", map[string]interface{}{
			"change": change.Number,
		})
		report.Outcome = domain.OutcomeNothingToPost
		o.markReviewed(ctx, change, &report)
		return report
	}

	comment := BuildComment(fragments, o.params.MaxCommentBytes)
	if !o.deps.Source.PostComment(ctx, change.Number, change.PatchsetNumber, comment, 0) {
		// One summarize-and-retry attempt covers the case where the server's
		// effective limit is tighter than ours.
		summary := BuildSummaryComment(comment, o.params.MaxCommentBytes)
		if !o.deps.Source.PostComment(ctx, change.Number, change.PatchsetNumber, summary, 0) {
			log.LogError(ctx, "posting failed twice, will retry next cycle", map[string]interface{}{
				"change":  change.Number,
				"subject": change.Subject,
			})
			report.Outcome = domain.OutcomePostFailed
			return report
		}
		comment = summary
	}

	report.Posted = len(comment)
	report.Outcome = domain.OutcomePosted
	o.markReviewed(ctx, change, &report)
	return report
}

// eligibleFiles applies the path filter and the churn cap, returning files
// in deterministic path order.
func (o *Orchestrator) eligibleFiles(ctx context.Context, change domain.Change, files map[string]domain.FileInfo) []domain.FileInfo {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var eligible []domain.FileInfo
	for _, path := range paths {
		info := files[path]
		if !filter.ShouldReview(path) {
			continue
		}
		if o.params.MaxLinesChanged > 0 && info.LinesChanged() > o.params.MaxLinesChanged {
			o.deps.Logger.LogInfo(ctx, "skipping oversized file", map[string]interface{}{
				"change": change.Number,
				"path":   path,
				"lines":  info.LinesChanged(),
			})
			continue
		}
		eligible = append(eligible, info)
	}
	return eligible
}

// reviewFiles generates reviews sequentially and collects the fragments
// worth posting. Clean files and failed generations contribute nothing.
func (o *Orchestrator) reviewFiles(ctx context.Context, change domain.Change, files []domain.FileInfo) []Fragment {
	log := o.deps.Logger

	var fragments []Fragment
	for _, info := range files {
		if ctx.Err() != nil {
			break
		}

		diff := o.deps.Source.GetFileDiff(ctx, change, info)
		if diff == "" {
			log.LogDebug(ctx, "no change representation available, skipping file", map[string]interface{}{
				"change": change.Number,
				"path":   info.Path,
			})
			continue
		}

		content := o.deps.Source.GetFileContent(ctx, change.Number, info.Path)
		if o.params.MaxContentBytes > 0 && len(content) > o.params.MaxContentBytes {
			log.LogDebug(ctx, "full content too large, reviewing diff only", map[string]interface{}{
				"change": change.Number,
				"path":   info.Path,
				"bytes":  len(content),
			})
			content = ""
		}

		result := domain.ClassifyReview(o.deps.Generator.ReviewFile(ctx, info.Path, diff, content))
		switch result.Kind {
		case domain.ReviewFindings:
			fragments = append(fragments, Fragment{Path: info.Path, Text: result.Text})
		case domain.ReviewGenerationFailed:
			log.LogWarning(ctx, "review generation degraded", map[string]interface{}{
				"change": change.Number,
				"path":   info.Path,
				"detail": result.Text,
			})
		}
	}
	return fragments
}

// markReviewed appends the tracking entry after a successful (or trivially
// successful) cycle for the change. A failed append is logged and left for
// the next cycle to retry, which at worst re-reviews once.
func (o *Orchestrator) markReviewed(ctx context.Context, change domain.Change, report *ChangeReport) {
	if err := o.deps.Tracker.MarkReviewed(change.ChangeID, change.CurrentRevision); err != nil {
		o.deps.Logger.LogError(ctx, "failed to record reviewed revision", map[string]interface{}{
			"change":   change.Number,
			"revision": change.CurrentRevision,
			"error":    err.Error(),
		})
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, runID string, report ChangeReport) {
	if o.deps.Store == nil {
		return
	}
	err := o.deps.Store.SaveOutcome(ctx, StoreOutcome{
		RunID:        runID,
		ChangeNumber: report.Change.Number,
		ChangeID:     report.Change.ChangeID,
		Revision:     report.Change.CurrentRevision,
		Subject:      report.Change.Subject,
		Outcome:      report.Outcome.String(),
		Fragments:    report.Fragments,
		PostedBytes:  report.Posted,
		CreatedAt:    o.deps.Now(),
	})
	if err != nil {
		o.deps.Logger.LogWarning(ctx, "failed to record change outcome", map[string]interface{}{
			"change": report.Change.Number,
			"error":  err.Error(),
		})
	}
}

// generateRunID creates a unique, time-ordered cycle ID.
// Format: run-<timestamp>-<hash>
func generateRunID(timestamp time.Time) string {
	ts := timestamp.UTC().Format("20060102T150405Z")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", timestamp.UnixNano())))
	return fmt.Sprintf("run-%s-%s", ts, hex.EncodeToString(sum[:3]))
}

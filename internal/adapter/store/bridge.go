// Package store adapts the SQLite history store to the orchestrator's
// history port.
package store

import (
	"context"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/store/sqlite"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/usecase/review"
)

// Bridge translates orchestrator history records into SQLite rows.
type Bridge struct {
	store *sqlite.Store
}

// NewBridge wraps a SQLite store behind the orchestrator's history port.
func NewBridge(s *sqlite.Store) *Bridge {
	return &Bridge{store: s}
}

func (b *Bridge) CreateRun(ctx context.Context, run review.StoreRun) error {
	return b.store.CreateRun(ctx, toRun(run))
}

func (b *Bridge) FinishRun(ctx context.Context, run review.StoreRun) error {
	return b.store.FinishRun(ctx, toRun(run))
}

func (b *Bridge) SaveOutcome(ctx context.Context, outcome review.StoreOutcome) error {
	return b.store.SaveOutcome(ctx, sqlite.ChangeOutcome{
		RunID:        outcome.RunID,
		ChangeNumber: outcome.ChangeNumber,
		ChangeID:     outcome.ChangeID,
		Revision:     outcome.Revision,
		Subject:      outcome.Subject,
		Outcome:      outcome.Outcome,
		Fragments:    outcome.Fragments,
		PostedBytes:  outcome.PostedBytes,
		CreatedAt:    outcome.CreatedAt,
	})
}

func toRun(run review.StoreRun) sqlite.Run {
	return sqlite.Run{
		RunID:        run.RunID,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
		ChangesSeen:  run.ChangesSeen,
		ChangesDone:  run.ChangesDone,
		ChangeErrors: run.ChangeErrors,
	}
}

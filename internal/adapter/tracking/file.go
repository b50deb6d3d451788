// Package tracking persists which (change, revision) pairs have been fully
// reviewed, as an append-only line file.
package tracking

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// FileStore is the idempotency ledger. Each line is one
// "<change_id>:<revision_id>" key; lines are appended, never rewritten.
// Reads tolerate a store that does not yet contain an in-flight review.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (or will lazily create) the ledger at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// IsReviewed reports whether the exact (change, revision) pair is recorded.
// A missing ledger file means nothing has been reviewed yet.
func (s *FileStore) IsReviewed(changeID, revisionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("open tracking file: %w", err)
	}
	defer f.Close()

	key := domain.TrackingKey(changeID, revisionID)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() == key {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read tracking file: %w", err)
	}
	return false, nil
}

// MarkReviewed appends the (change, revision) pair to the ledger.
func (s *FileStore) MarkReviewed(changeID, revisionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tracking file for append: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n", domain.TrackingKey(changeID, revisionID)); err != nil {
		return fmt.Errorf("append tracking entry: %w", err)
	}
	return nil
}

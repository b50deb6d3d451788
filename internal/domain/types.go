package domain

import "time"

// Change kinds reported by Gerrit for a file in a patchset.
const (
	ChangeKindAdded    = "ADDED"
	ChangeKindModified = "MODIFIED"
	ChangeKindDeleted  = "DELETED"
	ChangeKindRenamed  = "RENAMED"
)

// Change identifies one reviewable unit on the Gerrit server.
// ChangeID is stable across pushes; CurrentRevision changes with every new
// patchset and is the unit of review deduplication.
type Change struct {
	ChangeID        string
	Number          int
	Project         string
	Subject         string
	Owner           string
	Status          string
	CurrentRevision string
	PatchsetNumber  int
	Updated         time.Time
}

// FileInfo describes a single file in a change's current patchset.
// Path is the unique key within a change. The commit-message pseudo-file
// is excluded before FileInfo values are constructed.
type FileInfo struct {
	Path          string
	LinesInserted int
	LinesDeleted  int
	ChangeKind    string
}

// LinesChanged returns the total churn for the file.
func (f FileInfo) LinesChanged() int {
	return f.LinesInserted + f.LinesDeleted
}

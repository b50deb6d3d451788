package gerrit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// commitMessageFile is the pseudo-file Gerrit reports for the commit message.
const commitMessageFile = "/COMMIT_MSG"

// queryLine is one JSON record from `gerrit query --format=JSON`. The last
// line of every response is a stats record, distinguished by Type.
type queryLine struct {
	Type            string     `json:"type"`
	ID              string     `json:"id"`
	Number          int        `json:"number"`
	Project         string     `json:"project"`
	Subject         string     `json:"subject"`
	Status          string     `json:"status"`
	Owner           ownerInfo  `json:"owner"`
	LastUpdated     int64      `json:"lastUpdated"`
	CurrentPatchSet *patchSet  `json:"currentPatchSet"`
	PatchSets       []patchSet `json:"patchSets"`
}

type ownerInfo struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type patchSet struct {
	Number   int         `json:"number"`
	Revision string      `json:"revision"`
	Parents  []string    `json:"parents"`
	Files    []fileEntry `json:"files"`
}

type fileEntry struct {
	File       string `json:"file"`
	Type       string `json:"type"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
}

// parseQueryLines decodes a raw query response into its JSON records,
// dropping blank lines, the stats trailer, and records that fail to decode.
// Dynamic response shapes stop here; everything past this boundary is typed.
func parseQueryLines(raw string) []queryLine {
	var records []queryLine
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var record queryLine
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			continue
		}
		if record.Type == "stats" {
			continue
		}
		records = append(records, record)
	}
	return records
}

// mapChange converts one query record into a domain Change.
func mapChange(record queryLine) domain.Change {
	change := domain.Change{
		ChangeID: record.ID,
		Number:   record.Number,
		Project:  record.Project,
		Subject:  record.Subject,
		Owner:    ownerIdentity(record.Owner),
		Status:   strings.ToLower(record.Status),
		Updated:  time.Unix(record.LastUpdated, 0).UTC(),
	}
	if record.CurrentPatchSet != nil {
		change.CurrentRevision = record.CurrentPatchSet.Revision
		change.PatchsetNumber = record.CurrentPatchSet.Number
	}
	return change
}

// mapFiles converts patchset file entries into the per-path FileInfo map,
// excluding the commit-message pseudo-file. Gerrit reports deletions as
// negative counts; FileInfo carries them as non-negative.
func mapFiles(ps *patchSet) map[string]domain.FileInfo {
	files := make(map[string]domain.FileInfo)
	if ps == nil {
		return files
	}
	for _, entry := range ps.Files {
		if entry.File == commitMessageFile {
			continue
		}
		files[entry.File] = domain.FileInfo{
			Path:          entry.File,
			LinesInserted: abs(entry.Insertions),
			LinesDeleted:  abs(entry.Deletions),
			ChangeKind:    normalizeChangeKind(entry.Type),
		}
	}
	return files
}

func ownerIdentity(o ownerInfo) string {
	switch {
	case o.Username != "":
		return o.Username
	case o.Email != "":
		return o.Email
	default:
		return o.Name
	}
}

func normalizeChangeKind(kind string) string {
	switch strings.ToUpper(kind) {
	case "ADDED":
		return domain.ChangeKindAdded
	case "DELETED":
		return domain.ChangeKindDeleted
	case "RENAMED":
		return domain.ChangeKindRenamed
	default:
		return domain.ChangeKindModified
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

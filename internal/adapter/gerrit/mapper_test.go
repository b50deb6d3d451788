package gerrit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryLines(t *testing.T) {
	raw := `{"type":"stats","rowCount":2}
{"id":"I111","number":42,"project":"demo","subject":"Fix parser","status":"NEW"}

not json at all
{"id":"I222","number":43,"project":"demo","subject":"Add cache","status":"NEW"}
`
	records := parseQueryLines(raw)
	require.Len(t, records, 2)
	assert.Equal(t, "I111", records[0].ID)
	assert.Equal(t, "I222", records[1].ID)
}

func TestParseQueryLinesEmptyInput(t *testing.T) {
	assert.Empty(t, parseQueryLines(""))
	assert.Empty(t, parseQueryLines("\n\n"))
	assert.Empty(t, parseQueryLines(`{"type":"stats","rowCount":0}`))
}

func TestMapChange(t *testing.T) {
	record := queryLine{
		ID:          "I111",
		Number:      42,
		Project:     "demo",
		Subject:     "Fix parser",
		Status:      "NEW",
		Owner:       ownerInfo{Username: "alice", Email: "alice@example.com", Name: "Alice"},
		LastUpdated: 1700000000,
		CurrentPatchSet: &patchSet{
			Number:   7,
			Revision: "deadbeef",
		},
	}

	change := mapChange(record)
	assert.Equal(t, "I111", change.ChangeID)
	assert.Equal(t, 42, change.Number)
	assert.Equal(t, "demo", change.Project)
	assert.Equal(t, "Fix parser", change.Subject)
	assert.Equal(t, "alice", change.Owner)
	assert.Equal(t, "new", change.Status)
	assert.Equal(t, "deadbeef", change.CurrentRevision)
	assert.Equal(t, 7, change.PatchsetNumber)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), change.Updated)
}

func TestMapChangeWithoutPatchset(t *testing.T) {
	change := mapChange(queryLine{ID: "I1", Number: 1})
	assert.Empty(t, change.CurrentRevision)
	assert.Zero(t, change.PatchsetNumber)
}

func TestOwnerIdentityFallbacks(t *testing.T) {
	assert.Equal(t, "alice", ownerIdentity(ownerInfo{Username: "alice", Email: "a@e", Name: "A"}))
	assert.Equal(t, "a@e", ownerIdentity(ownerInfo{Email: "a@e", Name: "A"}))
	assert.Equal(t, "A", ownerIdentity(ownerInfo{Name: "A"}))
}

func TestMapFiles(t *testing.T) {
	ps := &patchSet{
		Files: []fileEntry{
			{File: "/COMMIT_MSG", Type: "MODIFIED", Insertions: 9, Deletions: 0},
			{File: "src/app.py", Type: "MODIFIED", Insertions: 12, Deletions: -4},
			{File: "src/new.py", Type: "ADDED", Insertions: 30, Deletions: 0},
			{File: "src/old.py", Type: "deleted", Insertions: 0, Deletions: -55},
		},
	}

	files := mapFiles(ps)
	require.Len(t, files, 3)
	assert.NotContains(t, files, "/COMMIT_MSG")

	modified := files["src/app.py"]
	assert.Equal(t, 12, modified.LinesInserted)
	assert.Equal(t, 4, modified.LinesDeleted, "negative deletion counts are normalized")
	assert.Equal(t, 16, modified.LinesChanged())
	assert.Equal(t, "MODIFIED", modified.ChangeKind)

	assert.Equal(t, "ADDED", files["src/new.py"].ChangeKind)
	assert.Equal(t, "DELETED", files["src/old.py"].ChangeKind)
	assert.Equal(t, 55, files["src/old.py"].LinesDeleted)
}

func TestMapFilesNilPatchset(t *testing.T) {
	files := mapFiles(nil)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestNormalizeChangeKind(t *testing.T) {
	assert.Equal(t, "ADDED", normalizeChangeKind("added"))
	assert.Equal(t, "RENAMED", normalizeChangeKind("RENAMED"))
	assert.Equal(t, "MODIFIED", normalizeChangeKind("REWORKED"))
	assert.Equal(t, "MODIFIED", normalizeChangeKind(""))
}

package review_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/usecase/review"
)

type mockSource struct {
	changes      []domain.Change
	files        map[int]map[string]domain.FileInfo
	diffs        map[string]string
	contents     map[string]string
	postResults  []bool
	postedBodies []string
}

func (m *mockSource) ListOpenChanges(ctx context.Context, query string) []domain.Change {
	return m.changes
}

func (m *mockSource) ListChangedFiles(ctx context.Context, changeNumber int) map[string]domain.FileInfo {
	return m.files[changeNumber]
}

func (m *mockSource) GetFileDiff(ctx context.Context, change domain.Change, info domain.FileInfo) string {
	if diff, ok := m.diffs[info.Path]; ok {
		return diff
	}
	return "@@ -1,2 +1,3 @@\n+changed"
}

func (m *mockSource) GetFileContent(ctx context.Context, changeNumber int, path string) string {
	return m.contents[path]
}

func (m *mockSource) PostComment(ctx context.Context, changeNumber, patchsetNumber int, message string, score int) bool {
	m.postedBodies = append(m.postedBodies, message)
	if len(m.postResults) == 0 {
		return true
	}
	result := m.postResults[0]
	m.postResults = m.postResults[1:]
	return result
}

type mockGenerator struct {
	reviews map[string]string
	calls   []string
}

func (m *mockGenerator) ReviewFile(ctx context.Context, path, diffText, fullContent string) string {
	m.calls = append(m.calls, path)
	if text, ok := m.reviews[path]; ok {
		return text
	}
	return domain.NoIssuesSentinel
}

type mockTracker struct {
	entries map[string]bool
	readErr error
	markErr error
	marked  []string
}

func newMockTracker() *mockTracker {
	return &mockTracker{entries: map[string]bool{}}
}

func (m *mockTracker) IsReviewed(changeID, revisionID string) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	return m.entries[domain.TrackingKey(changeID, revisionID)], nil
}

func (m *mockTracker) MarkReviewed(changeID, revisionID string) error {
	if m.markErr != nil {
		return m.markErr
	}
	key := domain.TrackingKey(changeID, revisionID)
	m.entries[key] = true
	m.marked = append(m.marked, key)
	return nil
}

type mockHistory struct {
	runs     []review.StoreRun
	finished []review.StoreRun
	outcomes []review.StoreOutcome
}

func (m *mockHistory) CreateRun(ctx context.Context, run review.StoreRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockHistory) FinishRun(ctx context.Context, run review.StoreRun) error {
	m.finished = append(m.finished, run)
	return nil
}

func (m *mockHistory) SaveOutcome(ctx context.Context, outcome review.StoreOutcome) error {
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

func testChange(number int, revision string) domain.Change {
	return domain.Change{
		ChangeID:        fmt.Sprintf("I%04d", number),
		Number:          number,
		Project:         "demo",
		Subject:         fmt.Sprintf("Change %d", number),
		Status:          "new",
		CurrentRevision: revision,
		PatchsetNumber:  7,
	}
}

func newOrchestrator(t *testing.T, source *mockSource, gen *mockGenerator, tracker *mockTracker, history review.HistoryStore) *review.Orchestrator {
	t.Helper()
	orch, err := review.NewOrchestrator(review.Deps{
		Source:    source,
		Generator: gen,
		Tracker:   tracker,
		Store:     history,
		Sleep:     func(time.Duration) {},
	}, review.Params{
		Query:           "status:open NOT is:wip",
		MaxLinesChanged: 5000,
		MaxContentBytes: 10240,
		MaxCommentBytes: 16384,
	})
	require.NoError(t, err)
	return orch
}

func TestProcessChangesPostsFindings(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"src/app.py": {Path: "src/app.py", LinesInserted: 10, LinesDeleted: 2, ChangeKind: domain.ChangeKindModified},
			},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{
		"src/app.py": "Line 12: the retry loop never backs off.",
	}}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.ChangesSeen)
	assert.Equal(t, 1, stats.Posted)
	require.Len(t, source.postedBodies, 1)
	assert.Contains(t, source.postedBodies[0], "**src/app.py**\nLine 12: the retry loop never backs off.")
	assert.Equal(t, []string{"I0042:rev7"}, tracker.marked)
}

func TestProcessChangesSkipsReviewedRevision(t *testing.T) {
	source := &mockSource{changes: []domain.Change{testChange(42, "rev7")}}
	gen := &mockGenerator{}
	tracker := newMockTracker()
	tracker.entries["I0042:rev7"] = true

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, gen.calls, "a reviewed revision must not reach the generator")
	assert.Empty(t, source.postedBodies)
}

func TestProcessChangesReviewsNewRevisionOfKnownChange(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev8")},
		files: map[int]map[string]domain.FileInfo{
			42: {"src/app.py": {Path: "src/app.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()
	tracker.entries["I0042:rev7"] = true

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Zero(t, stats.Skipped)
	assert.Equal(t, []string{"src/app.py"}, gen.calls)
}

func TestProcessChangesNoEligibleFiles(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"README":           {Path: "README"},
				"tests/test_a.py":  {Path: "tests/test_a.py", LinesInserted: 5},
				"assets/image.png": {Path: "assets/image.png", LinesInserted: 1},
			},
		},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.NothingToDo)
	assert.Empty(t, gen.calls)
	assert.Empty(t, source.postedBodies)
	assert.Equal(t, []string{"I0042:rev7"}, tracker.marked, "a change with no reviewable files is still marked done")
}

func TestProcessChangesOversizedFileNeverReachesGenerator(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"src/huge.py":  {Path: "src/huge.py", LinesInserted: 6000, ChangeKind: domain.ChangeKindModified},
				"src/small.py": {Path: "src/small.py", LinesInserted: 3, ChangeKind: domain.ChangeKindModified},
			},
		},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()

	newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, []string{"src/small.py"}, gen.calls)
}

func TestProcessChangesSentinelSuppressesPosting(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified},
				"b.py": {Path: "b.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified},
			},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{
		"a.py": domain.NoIssuesSentinel,
		"b.py": "  No issues found  ",
	}}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.NothingToDo)
	assert.Empty(t, source.postedBodies, "all-clean reviews must not produce a comment")
	assert.Equal(t, []string{"I0042:rev7"}, tracker.marked)
}

func TestProcessChangesGenerationFailureContributesNothing(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified},
				"b.py": {Path: "b.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified},
			},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{
		"a.py": domain.TimeoutSentinel,
		"b.py": "Line 9: off-by-one in the pagination cursor.",
	}}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.Posted)
	require.Len(t, source.postedBodies, 1)
	assert.NotContains(t, source.postedBodies[0], domain.TimeoutSentinel)
	assert.Contains(t, source.postedBodies[0], "off-by-one")
}

func TestProcessChangesEmptyDiffSkipsFile(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
		diffs: map[string]string{"a.py": ""},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Empty(t, gen.calls)
	assert.Equal(t, 1, stats.NothingToDo)
}

func TestProcessChangesPostRetrySummary(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
		postResults: []bool{false, true},
	}
	gen := &mockGenerator{reviews: map[string]string{
		"a.py": "- The lock is released before the write completes.",
	}}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.Posted)
	require.Len(t, source.postedBodies, 2)
	assert.True(t, len(source.postedBodies[1]) <= len(source.postedBodies[0]),
		"the retry body must be the condensed summary")
	assert.Equal(t, []string{"I0042:rev7"}, tracker.marked)
}

func TestProcessChangesPostFailureLeavesChangeUnmarked(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
		postResults: []bool{false, false},
	}
	gen := &mockGenerator{reviews: map[string]string{"a.py": "A finding."}}
	tracker := newMockTracker()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.PostFailures)
	assert.Empty(t, tracker.marked, "a failed post must stay eligible for the next cycle")
	require.Len(t, source.postedBodies, 2)
}

func TestProcessChangesTrackerReadFailureMeansReReview(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()
	tracker.readErr = errors.New("disk unreadable")

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Zero(t, stats.Errors)
	assert.Equal(t, []string{"a.py"}, gen.calls, "an unreadable ledger re-reviews rather than silently skipping")
}

func TestProcessChangesMarkFailureDoesNotFailTheChange(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{"a.py": "A finding."}}
	tracker := newMockTracker()
	tracker.markErr = errors.New("disk full")

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.Posted)
}

func TestProcessChangesIsolatesPerChangeFailures(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(1, "r1"), testChange(2, "r2")},
		files: map[int]map[string]domain.FileInfo{
			// change 1 has no file entry, which drives the panic below
			2: {"b.py": {Path: "b.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{"b.py": "A finding."}}
	tracker := newMockTracker()

	panicking := &panickingSource{mockSource: source, panicOn: 1}
	orch, err := review.NewOrchestrator(review.Deps{
		Source:    panicking,
		Generator: gen,
		Tracker:   tracker,
		Sleep:     func(time.Duration) {},
	}, review.Params{MaxCommentBytes: 16384})
	require.NoError(t, err)

	stats := orch.ProcessChanges(context.Background())

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Posted, "a panicking change must not poison its siblings")
}

type panickingSource struct {
	*mockSource
	panicOn int
}

func (p *panickingSource) ListChangedFiles(ctx context.Context, changeNumber int) map[string]domain.FileInfo {
	if changeNumber == p.panicOn {
		panic("malformed change payload")
	}
	return p.mockSource.ListChangedFiles(ctx, changeNumber)
}

func TestProcessChangesHonorsContextCancellation(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(1, "r1"), testChange(2, "r2"), testChange(3, "r3")},
	}
	gen := &mockGenerator{}
	tracker := newMockTracker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := newOrchestrator(t, source, gen, tracker, nil).ProcessChanges(ctx)

	assert.Equal(t, 3, stats.ChangesSeen)
	assert.Zero(t, stats.Posted+stats.Skipped+stats.NothingToDo+stats.Errors)
}

func TestProcessChangesRecordsHistory(t *testing.T) {
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {"a.py": {Path: "a.py", LinesInserted: 1, ChangeKind: domain.ChangeKindModified}},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{"a.py": "A finding."}}
	tracker := newMockTracker()
	history := &mockHistory{}

	newOrchestrator(t, source, gen, tracker, history).ProcessChanges(context.Background())

	require.Len(t, history.runs, 1)
	require.Len(t, history.finished, 1)
	require.Len(t, history.outcomes, 1)

	assert.True(t, strings.HasPrefix(history.runs[0].RunID, "run-"))
	assert.Equal(t, history.runs[0].RunID, history.outcomes[0].RunID)
	assert.Equal(t, "posted", history.outcomes[0].Outcome)
	assert.Equal(t, 1, history.outcomes[0].Fragments)
	assert.Positive(t, history.outcomes[0].PostedBytes)
	assert.Equal(t, 1, history.finished[0].ChangesDone)
}

func TestProcessChangesEndToEnd(t *testing.T) {
	// A change touching one clean source file and one generated file should
	// post nothing and still be remembered as reviewed.
	source := &mockSource{
		changes: []domain.Change{testChange(42, "rev7")},
		files: map[int]map[string]domain.FileInfo{
			42: {
				"a.py":                   {Path: "a.py", LinesInserted: 4, ChangeKind: domain.ChangeKindModified},
				"api/generated/proto.go": {Path: "api/generated/proto.go", LinesInserted: 900, ChangeKind: domain.ChangeKindAdded},
			},
		},
	}
	gen := &mockGenerator{reviews: map[string]string{"a.py": domain.NoIssuesSentinel}}
	tracker := newMockTracker()

	orch := newOrchestrator(t, source, gen, tracker, nil)

	first := orch.ProcessChanges(context.Background())
	assert.Equal(t, 1, first.NothingToDo)
	assert.Equal(t, []string{"a.py"}, gen.calls)
	assert.Empty(t, source.postedBodies)
	assert.Equal(t, []string{"I0042:rev7"}, tracker.marked)

	// The next cycle sees the same revision and does nothing.
	second := orch.ProcessChanges(context.Background())
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, []string{"a.py"}, gen.calls, "no additional generator calls on the second cycle")
}

func TestNewOrchestratorValidation(t *testing.T) {
	_, err := review.NewOrchestrator(review.Deps{}, review.Params{})
	assert.Error(t, err)

	_, err = review.NewOrchestrator(review.Deps{Source: &mockSource{}}, review.Params{})
	assert.Error(t, err)

	_, err = review.NewOrchestrator(review.Deps{Source: &mockSource{}, Generator: &mockGenerator{}}, review.Params{})
	assert.Error(t, err)

	_, err = review.NewOrchestrator(review.Deps{
		Source:    &mockSource{},
		Generator: &mockGenerator{},
		Tracker:   newMockTracker(),
	}, review.Params{})
	assert.NoError(t, err)
}

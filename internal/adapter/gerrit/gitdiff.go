package gerrit

import (
	"bytes"
	"context"
	"fmt"

	goGit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/memory"
	"golang.org/x/crypto/ssh"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/domain"
)

// patchsetRef is the local name the fetched change ref lands on.
const patchsetRef = "refs/gcr/patchset"

// DiffProvider produces a line-level diff for one file of a change, or an
// error when the repository or ref cannot be reached. Callers treat any
// error as "fall back to the metadata summary."
type DiffProvider interface {
	FileDiff(ctx context.Context, change domain.Change, path string) (string, error)
}

// GitDiffProvider fetches a change's patchset ref into an in-memory
// repository and diffs it against its first parent. Gerrit publishes every
// patchset under refs/changes/<NN>/<number>/<patchset> on the project's git
// URL, so this yields the real diff the SSH query API does not expose.
type GitDiffProvider struct {
	host     string
	port     int
	username string
	keyPath  string
}

// NewGitDiffProvider builds a provider reusing the Gerrit SSH identity.
func NewGitDiffProvider(host string, port int, username, keyPath string) *GitDiffProvider {
	return &GitDiffProvider{host: host, port: port, username: username, keyPath: keyPath}
}

// FileDiff returns the unified diff for one file of the change's current
// patchset, or an empty string when the file is not part of the patch.
func (p *GitDiffProvider) FileDiff(ctx context.Context, change domain.Change, path string) (string, error) {
	if change.Project == "" || change.Number == 0 || change.PatchsetNumber == 0 {
		return "", fmt.Errorf("change %s lacks project or patchset metadata", change.ChangeID)
	}

	auth, err := gitssh.NewPublicKeysFromFile(p.username, p.keyPath, "")
	if err != nil {
		return "", fmt.Errorf("load ssh key: %w", err)
	}
	auth.HostKeyCallback = ssh.InsecureIgnoreHostKey()

	repo, err := goGit.Init(memory.NewStorage(), nil)
	if err != nil {
		return "", fmt.Errorf("init in-memory repo: %w", err)
	}

	url := fmt.Sprintf("ssh://%s@%s:%d/%s", p.username, p.host, p.port, change.Project)
	remote, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})
	if err != nil {
		return "", fmt.Errorf("create remote: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("+%s:%s", ChangeRef(change.Number, change.PatchsetNumber), patchsetRef))
	// Depth 2 pulls the patchset commit plus its parent, which is all the
	// diff needs.
	err = remote.FetchContext(ctx, &goGit.FetchOptions{
		RefSpecs: []gitconfig.RefSpec{refSpec},
		Depth:    2,
		Auth:     auth,
		Tags:     goGit.NoTags,
	})
	if err != nil && err != goGit.NoErrAlreadyUpToDate {
		return "", fmt.Errorf("fetch %s: %w", refSpec, err)
	}

	ref, err := repo.Reference(plumbing.ReferenceName(patchsetRef), true)
	if err != nil {
		return "", fmt.Errorf("resolve patchset ref: %w", err)
	}

	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return "", fmt.Errorf("load patchset commit: %w", err)
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return "", fmt.Errorf("load parent commit: %w", err)
	}

	patch, err := parent.PatchContext(ctx, commit)
	if err != nil {
		return "", fmt.Errorf("compute patch: %w", err)
	}

	for _, fp := range patch.FilePatches() {
		if filePatchPath(fp) != path {
			continue
		}
		return encodeFilePatch(fp)
	}
	return "", nil
}

// ChangeRef builds the Gerrit ref name for a change's patchset:
// refs/changes/<last two digits>/<number>/<patchset>.
func ChangeRef(changeNumber, patchsetNumber int) string {
	return fmt.Sprintf("refs/changes/%02d/%d/%d", changeNumber%100, changeNumber, patchsetNumber)
}

func filePatchPath(fp formatdiff.FilePatch) string {
	from, to := fp.Files()
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

func encodeFilePatch(fp formatdiff.FilePatch) (string, error) {
	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(singlePatch{fp: fp}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type singlePatch struct {
	fp formatdiff.FilePatch
}

func (s singlePatch) FilePatches() []formatdiff.FilePatch {
	return []formatdiff.FilePatch{s.fp}
}

func (s singlePatch) Message() string {
	return ""
}

package gitrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamdman/vanity/gitrepo"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()

	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	return dir, repo
}

func commitEmpty(
	t *testing.T,
	repo *git.Repository,
	message string,
	when time.Time,
) plumbing.Hash {
	t.Helper()

	sig := object.Signature{
		Name:  "Tester",
		Email: "tester@example.com",
		When:  when,
	}

	wt, err := repo.Worktree()
	require.NoError(t, err)

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author:            &sig,
		Committer:         &sig,
		AllowEmptyCommits: true,
	})
	require.NoError(t, err)

	return hash
}

func TestOpen_not_a_repository(t *testing.T) {
	t.Parallel()

	_, err := gitrepo.Open(t.TempDir())

	require.ErrorIs(t, err, gitrepo.ErrNotRepository)
}

func TestHeadHash_zero_for_empty_repository(t *testing.T) {
	t.Parallel()

	dir, _ := initRepo(t)

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	hash, err := repo.HeadHash()
	require.NoError(t, err)
	assert.Equal(t, plumbing.ZeroHash, hash)
}

func TestCreateEmptyCommit_advances_tip(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	first := commitEmpty(t, raw, "initial", base)

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	sig := object.Signature{
		Name:  "Vanity",
		Email: "vanity@example.invalid",
		When:  base.Add(time.Hour),
	}

	created, err := repo.CreateEmptyCommit("mirror message", sig)
	require.NoError(t, err)

	head, err := repo.HeadHash()
	require.NoError(t, err)
	assert.Equal(t, created, head)

	parent, err := raw.CommitObject(first)
	require.NoError(t, err)

	got, err := raw.CommitObject(created)
	require.NoError(t, err)

	assert.Equal(t, "mirror message", got.Message)
	assert.Equal(t, parent.TreeHash, got.TreeHash)
	require.Len(t, got.ParentHashes, 1)
	assert.Equal(t, first, got.ParentHashes[0])
	assert.Equal(t, "Vanity", got.Author.Name)
}

func TestCreateEmptyCommit_requires_existing_commit(t *testing.T) {
	t.Parallel()

	dir, _ := initRepo(t)

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	_, err = repo.CreateEmptyCommit("message", object.Signature{
		Name:  "Vanity",
		Email: "vanity@example.invalid",
		When:  time.Now(),
	})
	require.Error(t, err)
}

func TestResolveRange_and_first_parent_range(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	c1 := commitEmpty(t, raw, "one", base)
	c2 := commitEmpty(t, raw, "two", base.Add(time.Hour))
	c3 := commitEmpty(t, raw, "three", base.Add(2*time.Hour))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	gotBase, gotTip, err := repo.ResolveRange(
		c1.String() + ".." + c3.String(),
	)
	require.NoError(t, err)
	assert.Equal(t, c1, gotBase)
	assert.Equal(t, c3, gotTip)

	chain, err := repo.FirstParentRange(gotBase, gotTip)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, c2, chain[0].Hash)
	assert.Equal(t, c3, chain[1].Hash)
}

func TestResolveRange_rejects_malformed(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)
	commitEmpty(t, raw, "one", time.Now())

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	for _, expr := range []string{"", "HEAD", "..HEAD", "HEAD.."} {
		_, _, err := repo.ResolveRange(expr)
		assert.Error(t, err, "range %q", expr)
	}
}

func TestFirstParentRange_base_not_ancestor(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	c1 := commitEmpty(t, raw, "one", base)
	c2 := commitEmpty(t, raw, "two", base.Add(time.Hour))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	// Reversed endpoints: c2 can never be reached walking back from c1.
	_, err = repo.FirstParentRange(c2, c1)
	require.Error(t, err)
}

func TestIsClean(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)
	commitEmpty(t, raw, "initial", time.Now())

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	clean, err := repo.IsClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "untracked.txt"), []byte("dirt"), 0o644,
	))

	clean, err = repo.IsClean(context.Background())
	require.NoError(t, err)
	assert.False(t, clean)
}

func TestIdentity_prefers_repo_config(t *testing.T) {
	t.Parallel()

	dir, raw := initRepo(t)

	cfg, err := raw.Config()
	require.NoError(t, err)

	cfg.User.Name = "Configured User"
	cfg.User.Email = "configured@example.com"
	require.NoError(t, raw.SetConfig(cfg))

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	name, email := repo.Identity()
	assert.Equal(t, "Configured User", name)
	assert.Equal(t, "configured@example.com", email)
}

func TestIdentity_falls_back_to_placeholder(t *testing.T) {
	// Points git's global config lookup at an empty directory, so no
	// user identity is found anywhere. Env mutation forbids t.Parallel.
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	dir, _ := initRepo(t)

	repo, err := gitrepo.Open(dir)
	require.NoError(t, err)

	name, email := repo.Identity()
	assert.Equal(t, gitrepo.FallbackAuthorName, name)
	assert.Equal(t, gitrepo.FallbackAuthorEmail, email)
}

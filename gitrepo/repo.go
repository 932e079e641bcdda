package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teamdman/vanity/exec"
)

// ErrNotRepository signals that a configured path does not hold a git
// repository.
var ErrNotRepository = errors.New("not a git repository")

// Fallback identity used when the repository config carries no user.
const (
	FallbackAuthorName  = "Vanity"
	FallbackAuthorEmail = "vanity@example.invalid"
)

// Repo is an open git repository. Create with Open.
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path. It returns ErrNotRepository (wrapped)
// when path is not a git repository.
func Open(path string) (*Repo, error) {
	const errCtx = "opening repository"

	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, path, ErrNotRepository,
			)
		}

		return nil, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return &Repo{path: path, repo: repo}, nil
}

// Path returns the filesystem path the repository was opened at.
func (r *Repo) Path() string {
	return r.path
}

// OriginURL returns the URL of the origin remote, or empty string when no
// origin remote is configured.
func (r *Repo) OriginURL() string {
	rem, err := r.repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return ""
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return ""
	}

	return urls[0]
}

// Identity resolves the committer identity from the repository config
// (local, global, then system scope). Missing name or email falls back to
// the Vanity placeholder identity.
func (r *Repo) Identity() (string, string) {
	name := FallbackAuthorName
	email := FallbackAuthorEmail

	cfg, err := r.repo.ConfigScoped(gitconfig.SystemScope)
	if err != nil {
		return name, email
	}

	if strings.TrimSpace(cfg.User.Name) != "" {
		name = cfg.User.Name
	}

	if strings.TrimSpace(cfg.User.Email) != "" {
		email = cfg.User.Email
	}

	return name, email
}

// HeadHash returns the commit id of the current tip. It returns a zero hash
// and no error for a repository with no commits yet.
func (r *Repo) HeadHash() (plumbing.Hash, error) {
	const errCtx = "resolving HEAD"

	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}

		return plumbing.ZeroHash, fmt.Errorf("%s: %w", errCtx, err)
	}

	return head.Hash(), nil
}

// WalkHead walks every commit reachable from HEAD, invoking fn for each.
// A repository with no commits yet walks nothing.
func (r *Repo) WalkHead(fn func(*object.Commit) error) error {
	const errCtx = "walking history from HEAD"

	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", errCtx, err)
	}

	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}
	defer iter.Close()

	if err := iter.ForEach(fn); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// WalkAll walks every commit reachable from any reference, invoking fn for
// each. Commits reachable from several references may be visited more than
// once; callers dedupe by hash.
func (r *Repo) WalkAll(fn func(*object.Commit) error) error {
	const errCtx = "walking history from all refs"

	iter, err := r.repo.Log(&git.LogOptions{All: true})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}

		return fmt.Errorf("%s: %w", errCtx, err)
	}
	defer iter.Close()

	if err := iter.ForEach(fn); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// CreateEmptyCommit writes a commit whose tree is identical to the current
// tip's tree, parented on the tip, and advances the tip reference to it.
// The target repository must already have at least one commit.
func (r *Repo) CreateEmptyCommit(
	message string,
	sig object.Signature,
) (plumbing.Hash, error) {
	const errCtx = "creating empty commit"

	head, err := r.repo.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf(
			"%s: target repository must have at least one commit: %w",
			errCtx, err,
		)
	}

	parent, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf(
			"%s: resolve tip commit: %w", errCtx, err,
		)
	}

	hash, err := r.writeCommit(
		message,
		parent.TreeHash,
		[]plumbing.Hash{parent.Hash},
		sig,
		sig,
	)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := r.updateRef(head.Name(), hash); err != nil {
		return plumbing.ZeroHash, fmt.Errorf(
			"%s: advance tip: %w", errCtx, err,
		)
	}

	return hash, nil
}

// CreateCommit writes a commit object with the given tree, parents, and
// signatures without touching any reference. Used by the history rewriter
// to build replacement chains before the final branch update.
func (r *Repo) CreateCommit(
	message string,
	tree plumbing.Hash,
	parents []plumbing.Hash,
	author object.Signature,
	committer object.Signature,
) (plumbing.Hash, error) {
	const errCtx = "creating commit"

	hash, err := r.writeCommit(message, tree, parents, author, committer)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%s: %w", errCtx, err)
	}

	return hash, nil
}

// CommitObject returns the commit with the given id.
func (r *Repo) CommitObject(hash plumbing.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("resolving commit %s: %w", hash, err)
	}

	return c, nil
}

// ResolveRange resolves a "base..tip" revision range into its two endpoint
// commit ids.
func (r *Repo) ResolveRange(
	rangeExpr string,
) (plumbing.Hash, plumbing.Hash, error) {
	const errCtx = "resolving revision range"

	parts := strings.SplitN(rangeExpr, "..", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return plumbing.ZeroHash, plumbing.ZeroHash, fmt.Errorf(
			"%s: %q is not of the form base..tip", errCtx, rangeExpr,
		)
	}

	base, err := r.repo.ResolveRevision(plumbing.Revision(parts[0]))
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, fmt.Errorf(
			"%s: base %q: %w", errCtx, parts[0], err,
		)
	}

	tip, err := r.repo.ResolveRevision(plumbing.Revision(parts[1]))
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, fmt.Errorf(
			"%s: tip %q: %w", errCtx, parts[1], err,
		)
	}

	return *base, *tip, nil
}

// FirstParentRange lists the commits strictly after base up to and including
// tip, following first parents only, ordered oldest first. It fails when
// base is not a first-parent ancestor of tip.
func (r *Repo) FirstParentRange(
	base plumbing.Hash,
	tip plumbing.Hash,
) ([]*object.Commit, error) {
	const errCtx = "listing range commits"

	var chain []*object.Commit

	cur := tip
	for cur != base {
		c, err := r.repo.CommitObject(cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", errCtx, cur, err)
		}

		chain = append(chain, c)

		if c.NumParents() == 0 {
			return nil, fmt.Errorf(
				"%s: %s is not a first-parent ancestor of %s",
				errCtx, base, tip,
			)
		}

		cur = c.ParentHashes[0]
	}

	// Reverse into oldest-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	return chain, nil
}

// ForceUpdateHead points the branch currently checked out at HEAD to hash.
func (r *Repo) ForceUpdateHead(hash plumbing.Hash) error {
	const errCtx = "updating branch reference"

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := r.updateRef(head.Name(), hash); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// IsClean reports whether the working tree has no uncommitted changes.
// Shells out to git status, which is far cheaper than a full go-git status
// on large trees.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	const errCtx = "checking working tree"

	out, err := exec.Ex(ctx, r.path, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out) == "", nil
}

func (r *Repo) writeCommit(
	message string,
	tree plumbing.Hash,
	parents []plumbing.Hash,
	author object.Signature,
	committer object.Signature,
) (plumbing.Hash, error) {
	commit := &object.Commit{
		Author:       author,
		Committer:    committer,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}

	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store commit: %w", err)
	}

	return hash, nil
}

func (r *Repo) updateRef(
	name plumbing.ReferenceName,
	hash plumbing.Hash,
) error {
	ref := plumbing.NewHashReference(name, hash)

	return r.repo.Storer.SetReference(ref)
}

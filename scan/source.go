package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teamdman/vanity/gitrepo"
	"github.com/teamdman/vanity/marker"
)

// DefaultParallelism bounds concurrent source repository scans.
const DefaultParallelism = 4

// SourceCommit describes one source commit eligible for mirroring. Immutable
// once read.
type SourceCommit struct {
	// RepoHint identifies the source repository: its origin remote URL
	// when configured, otherwise its canonical path.
	RepoHint string

	// CommitID is the 40-hex lowercase commit id.
	CommitID string

	// AuthorName and AuthorEmail are the source commit's author identity.
	AuthorName  string
	AuthorEmail string

	// AuthorWhen is the source commit's author timestamp.
	AuthorWhen time.Time

	// Subject is the source commit's summary line.
	Subject string

	// WebBaseURL is the https web base of the source repository when its
	// origin is a recognized hosting URL, empty otherwise.
	WebBaseURL string
}

// CommitURL returns the web URL of the source commit, or empty string when
// no web base is known.
func (c SourceCommit) CommitURL() string {
	if c.WebBaseURL == "" {
		return ""
	}

	return strings.TrimSuffix(c.WebBaseURL, "/") + "/commit/" + c.CommitID
}

// AuthorFilter restricts source scanning to commits by one author. The zero
// value matches every commit. Name and email compare case-insensitively and
// each is only checked when non-empty.
type AuthorFilter struct {
	Name  string
	Email string
}

// Matches reports whether the commit author passes the filter.
func (f AuthorFilter) Matches(name, email string) bool {
	if f.Name != "" && !strings.EqualFold(f.Name, name) {
		return false
	}

	if f.Email != "" && !strings.EqualFold(f.Email, email) {
		return false
	}

	return true
}

// Sources scans every source repository concurrently and returns the
// concatenation of their descriptors, grouped per repository in input
// order. Ordering across repositories is the planner's concern.
func Sources(
	ctx context.Context,
	paths []string,
	filter AuthorFilter,
	parallelism int,
) ([]SourceCommit, error) {
	const errCtx = "scanning source repositories"

	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	// Worker pool with bounded concurrency. Results land in a slot per
	// repository so the merged output does not depend on scheduling.
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	perRepo := make([][]SourceCommit, len(paths))
	sem := make(chan struct{}, parallelism)

	for i, path := range paths {
		if ctx.Err() != nil {
			mu.Lock()
			errs = append(errs, ctx.Err())
			mu.Unlock()

			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(slot int, repoPath string) {
			defer wg.Done()
			defer func() { <-sem }()

			commits, scanErr := sourceRepo(repoPath, filter)
			if scanErr != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf(
					"scan %s: %w", repoPath, scanErr,
				))
				mu.Unlock()

				return
			}

			perRepo[slot] = commits
		}(i, path)
	}

	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf(
			"%s: %d errors, first: %w", errCtx, len(errs), errs[0],
		)
	}

	var all []SourceCommit
	for _, commits := range perRepo {
		all = append(all, commits...)
	}

	return all, nil
}

// sourceRepo walks the full reachable history of one source repository and
// extracts a descriptor for every commit passing the author filter.
func sourceRepo(
	path string,
	filter AuthorFilter,
) ([]SourceCommit, error) {
	repo, err := gitrepo.Open(path)
	if err != nil {
		return nil, err
	}

	hint := repo.OriginURL()
	if hint == "" {
		hint = path
	}

	webBase := WebBaseURL(hint)

	var (
		commits []SourceCommit
		seen    = make(map[plumbing.Hash]struct{})
	)

	err = repo.WalkAll(func(c *object.Commit) error {
		if _, ok := seen[c.Hash]; ok {
			return nil
		}
		seen[c.Hash] = struct{}{}

		if !filter.Matches(c.Author.Name, c.Author.Email) {
			return nil
		}

		commits = append(commits, SourceCommit{
			RepoHint:    hint,
			CommitID:    c.Hash.String(),
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			AuthorWhen:  c.Author.When,
			Subject:     marker.Subject(c.Message),
			WebBaseURL:  webBase,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug(
		"scanned source repository",
		"repo", hint,
		"commits", len(commits),
	)

	return commits, nil
}

// WebBaseURL derives the https web base of a repository from its repo hint.
// Only github.com remotes are recognized; everything else yields empty
// string.
func WebBaseURL(hint string) string {
	h := strings.TrimSpace(hint)

	if path, ok := strings.CutPrefix(h, "git@github.com:"); ok {
		return "https://github.com/" + strings.TrimSuffix(path, ".git")
	}

	if strings.HasPrefix(h, "https://github.com/") ||
		strings.HasPrefix(h, "http://github.com/") {
		return strings.TrimSuffix(
			strings.TrimSuffix(h, ".git"), "/",
		)
	}

	return ""
}

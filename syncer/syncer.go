package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teamdman/vanity/gitrepo"
	"github.com/teamdman/vanity/guard"
	"github.com/teamdman/vanity/marker"
	"github.com/teamdman/vanity/plan"
	"github.com/teamdman/vanity/scan"
)

// ErrNotConfigured signals a sync attempt without a target repository or
// with an empty source list.
var ErrNotConfigured = errors.New("sync is not configured")

// Config holds all settings for one sync run.
type Config struct {
	// TargetPath is the canonical path of the vanity repository that
	// receives mirror commits.
	TargetPath string

	// SourcePaths are the canonical paths of the repositories whose
	// commits are mirrored.
	SourcePaths []string

	// Author restricts source scanning to commits by one author. Zero
	// value mirrors every commit.
	Author scan.AuthorFilter

	// VanityName and VanityEmail override the identity mirror commits
	// are authored with. When empty the target repository's configured
	// user is used, with a placeholder fallback.
	VanityName  string
	VanityEmail string

	// SubjectTemplate renders mirror-commit subject lines. Empty means
	// marker.DefaultSubjectTemplate.
	SubjectTemplate string

	// ExpectedRemote is the canonical origin identity the target must
	// carry. Empty means guard.DefaultExpectedRemote.
	ExpectedRemote string

	// DryRun stops after planning and reports what would be written.
	DryRun bool

	// Limit caps the number of commits created in this run; 0 means no
	// cap.
	Limit int

	// AllowNonVanityTarget bypasses the safety guard.
	AllowNonVanityTarget bool

	// ScanParallelism bounds concurrent source scans; 0 means the scan
	// package default.
	ScanParallelism int
}

// PendingCommit identifies one source commit awaiting mirroring.
type PendingCommit struct {
	RepoHint string `json:"repo_hint"`
	CommitID string `json:"commit_id"`
}

// Summary reports the outcome of a sync run.
type Summary struct {
	// SourceCommits counts descriptors gathered across all sources.
	SourceCommits int `json:"source_commits"`

	// MirroredMarkers counts markers found in target history.
	MirroredMarkers int `json:"mirrored_markers"`

	// Pending lists the commits that still needed mirroring when the
	// plan was computed.
	Pending []PendingCommit `json:"pending"`

	// Created counts commits actually written this run. Always zero for
	// dry runs.
	Created int `json:"newly_created"`

	// DryRun records whether this run was a dry run.
	DryRun bool `json:"dry_run"`
}

// Run executes the sync pipeline. On a committer failure the returned
// summary still carries the number of commits written before the error;
// those commits are durable and the next run picks up the remainder.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	const errCtx = "running sync"

	if cfg.TargetPath == "" {
		return nil, fmt.Errorf(
			"%s: this-repo is not set: %w", errCtx, ErrNotConfigured,
		)
	}

	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf(
			"%s: read-repo list is empty: %w", errCtx, ErrNotConfigured,
		)
	}

	target, err := gitrepo.Open(cfg.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	// The target walk is independent of the source scans, so it runs
	// alongside them.
	var (
		mirrored    *scan.MirroredSet
		mirroredErr error
		done        = make(chan struct{})
	)

	go func() {
		defer close(done)

		mirrored, mirroredErr = scan.Mirrored(target)
	}()

	sources, err := scan.Sources(
		ctx, cfg.SourcePaths, cfg.Author, cfg.ScanParallelism,
	)

	<-done

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if mirroredErr != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, mirroredErr)
	}

	pending := plan.Pending(sources, mirrored, cfg.Limit)

	summary := &Summary{
		SourceCommits:   len(sources),
		MirroredMarkers: mirrored.Len(),
		Pending:         make([]PendingCommit, 0, len(pending)),
		DryRun:          cfg.DryRun,
	}

	for _, c := range pending {
		summary.Pending = append(summary.Pending, PendingCommit{
			RepoHint: c.RepoHint,
			CommitID: c.CommitID,
		})
	}

	slog.Info(
		"planned sync",
		"source_commits", len(sources),
		"mirrored", mirrored.Len(),
		"pending", len(pending),
		"dry_run", cfg.DryRun,
	)

	if cfg.DryRun {
		return summary, nil
	}

	expected := cfg.ExpectedRemote
	if expected == "" {
		expected = guard.DefaultExpectedRemote
	}

	if err := guard.Check(
		target, expected, cfg.AllowNonVanityTarget,
	); err != nil {
		return summary, fmt.Errorf("%s: %w", errCtx, err)
	}

	created, err := commitAll(target, cfg, pending)

	summary.Created = created

	if err != nil {
		return summary, fmt.Errorf("%s: %w", errCtx, err)
	}

	return summary, nil
}

// commitAll writes one empty mirror commit per pending descriptor, in
// order, advancing the tip after each write. It stops at the first write
// error; commits written before the failure stay in place.
func commitAll(
	target *gitrepo.Repo,
	cfg Config,
	pending []scan.SourceCommit,
) (int, error) {
	const errCtx = "writing mirror commits"

	name, email := cfg.VanityName, cfg.VanityEmail
	if name == "" || email == "" {
		repoName, repoEmail := target.Identity()
		if name == "" {
			name = repoName
		}
		if email == "" {
			email = repoEmail
		}
	}

	tmpl := cfg.SubjectTemplate
	if tmpl == "" {
		tmpl = marker.DefaultSubjectTemplate
	}

	for i, c := range pending {
		message := marker.Encode(
			tmpl,
			marker.Marker{
				RepoHint:  c.RepoHint,
				CommitID:  c.CommitID,
				SourceURL: c.CommitURL(),
			},
			marker.Details{
				AuthorDate: c.AuthorWhen,
				Subject:    c.Subject,
			},
		)

		// Mirror commits are deliberately not backdated: the author
		// identity carries the attribution, while the timestamps say
		// when the mirror was produced.
		now := time.Now()
		sig := object.Signature{Name: name, Email: email, When: now}

		hash, err := target.CreateEmptyCommit(message, sig)
		if err != nil {
			return i, fmt.Errorf(
				"%s: source %s: %w", errCtx, c.CommitID, err,
			)
		}

		slog.Debug(
			"created mirror commit",
			"commit", hash.String(),
			"source", c.CommitID,
			"repo", c.RepoHint,
		)
	}

	return len(pending), nil
}

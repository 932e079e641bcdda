// Package rewrite regenerates the messages of already-mirrored commits in
// place. It walks a base..tip range oldest to newest, rebuilds each mirror
// commit's message from its decoded marker under the current configuration,
// and replaces the range with a fresh linear segment before force-updating
// the branch tip. Commit objects are content-addressed, so every commit id
// in the range changes; pushing the result is the caller's concern.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teamdman/vanity/gitrepo"
	"github.com/teamdman/vanity/guard"
	"github.com/teamdman/vanity/marker"
	"github.com/teamdman/vanity/scan"
)

var (
	// ErrDirtyWorktree signals uncommitted changes in the target
	// repository; rewriting refuses to start.
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

	// ErrRangeTipNotHead signals a range whose tip is not the current
	// branch tip; rewriting such a range would silently drop the commits
	// above it.
	ErrRangeTipNotHead = errors.New(
		"range tip is not the current branch tip",
	)
)

// Config holds all settings for one history-rewrite run.
type Config struct {
	// TargetPath is the canonical path of the vanity repository.
	TargetPath string

	// Range designates the commits to rewrite as "base..tip". The base
	// commit itself is kept; everything after it is replaced. The tip
	// must resolve to the current branch tip.
	Range string

	// SubjectTemplate renders regenerated subject lines. Empty means
	// marker.DefaultSubjectTemplate.
	SubjectTemplate string

	// ExpectedRemote is the canonical origin identity the target must
	// carry. Empty means guard.DefaultExpectedRemote.
	ExpectedRemote string

	// AllowNonVanityTarget bypasses the safety guard.
	AllowNonVanityTarget bool
}

// Summary reports the outcome of a rewrite run.
type Summary struct {
	// Rewritten counts replaced commits.
	Rewritten int `json:"rewritten"`

	// OldTip and NewTip are the branch tip before and after the
	// rewrite.
	OldTip string `json:"old_tip"`
	NewTip string `json:"new_tip"`
}

// Run replaces the designated commit range with regenerated messages.
// Non-mirror commits in the range keep their message but are still
// reparented onto the replacement chain.
func Run(ctx context.Context, cfg Config) (*Summary, error) {
	const errCtx = "rewriting history"

	target, err := gitrepo.Open(cfg.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	clean, err := target.IsClean(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if !clean {
		return nil, fmt.Errorf("%s: %w", errCtx, ErrDirtyWorktree)
	}

	expected := cfg.ExpectedRemote
	if expected == "" {
		expected = guard.DefaultExpectedRemote
	}

	if err := guard.Check(
		target, expected, cfg.AllowNonVanityTarget,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	base, tip, err := target.ResolveRange(cfg.Range)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	head, err := target.HeadHash()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if head != tip {
		return nil, fmt.Errorf(
			"%s: tip %s, HEAD %s: %w",
			errCtx, tip, head, ErrRangeTipNotHead,
		)
	}

	chain, err := target.FirstParentRange(base, tip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	summary := &Summary{OldTip: tip.String()}

	if len(chain) == 0 {
		summary.NewTip = tip.String()

		return summary, nil
	}

	tmpl := cfg.SubjectTemplate
	if tmpl == "" {
		tmpl = marker.DefaultSubjectTemplate
	}

	newParent := base

	for _, c := range chain {
		replacement, err := target.CreateCommit(
			regenerateMessage(tmpl, c),
			c.TreeHash,
			[]plumbing.Hash{newParent},
			c.Author,
			c.Committer,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: replace %s: %w", errCtx, c.Hash, err,
			)
		}

		newParent = replacement
		summary.Rewritten++
	}

	if err := target.ForceUpdateHead(newParent); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	summary.NewTip = newParent.String()

	slog.Info(
		"rewrote history",
		"rewritten", summary.Rewritten,
		"old_tip", summary.OldTip,
		"new_tip", summary.NewTip,
	)

	return summary, nil
}

// regenerateMessage rebuilds a mirror commit's message from its marker,
// deriving the commit URL afresh from the repo hint. Commits without a
// decodable marker keep their message unchanged.
func regenerateMessage(tmpl string, c *object.Commit) string {
	m, err := marker.Decode(c.Message)
	if err != nil {
		if errors.Is(err, marker.ErrMalformedMarker) {
			slog.Warn(
				"keeping message with malformed marker",
				"commit", c.Hash.String(),
			)
		}

		return c.Message
	}

	if base := scan.WebBaseURL(m.RepoHint); base != "" {
		m.SourceURL = base + "/commit/" + m.CommitID
	}

	return marker.Encode(tmpl, m, marker.DecodeDetails(c.Message))
}

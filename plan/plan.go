// Package plan computes the pending list: the source commits not yet
// mirrored, deduplicated and in deterministic write order. It is pure
// set-difference and sorting with no repository I/O, so the same inputs
// always yield the same plan.
package plan

import (
	"sort"

	"github.com/teamdman/vanity/scan"
)

// Pending filters out already-mirrored descriptors, deduplicates the rest
// by (repo hint, commit id), and sorts them by repo hint, then author
// timestamp ascending, then commit id. A limit > 0 truncates the result.
func Pending(
	all []scan.SourceCommit,
	mirrored *scan.MirroredSet,
	limit int,
) []scan.SourceCommit {
	type key struct {
		repoHint string
		commitID string
	}

	seen := make(map[key]struct{}, len(all))

	var pending []scan.SourceCommit

	for _, c := range all {
		if mirrored.Contains(c.RepoHint, c.CommitID) {
			continue
		}

		k := key{repoHint: c.RepoHint, commitID: c.CommitID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		pending = append(pending, c)
	}

	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]

		if a.RepoHint != b.RepoHint {
			return a.RepoHint < b.RepoHint
		}

		if !a.AuthorWhen.Equal(b.AuthorWhen) {
			return a.AuthorWhen.Before(b.AuthorWhen)
		}

		return a.CommitID < b.CommitID
	})

	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	return pending
}

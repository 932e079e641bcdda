package scan

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teamdman/vanity/gitrepo"
	"github.com/teamdman/vanity/marker"
)

// MirroredSet records which source commits the target repository already
// mirrors. Built once per run by Mirrored, read-only afterward.
type MirroredSet struct {
	pairs map[pairKey]struct{}

	// Markers written by older tooling lack a repo hint; those match by
	// commit id alone.
	bare map[string]struct{}
}

type pairKey struct {
	repoHint string
	commitID string
}

// NewMirroredSet returns an empty set.
func NewMirroredSet() *MirroredSet {
	return &MirroredSet{
		pairs: make(map[pairKey]struct{}),
		bare:  make(map[string]struct{}),
	}
}

// Add records a decoded marker in the set.
func (s *MirroredSet) Add(m marker.Marker) {
	if m.RepoHint == "" {
		s.bare[m.CommitID] = struct{}{}

		return
	}

	s.pairs[pairKey{repoHint: m.RepoHint, commitID: m.CommitID}] = struct{}{}
}

// Contains reports whether the given source commit is already mirrored,
// either by exact (repo hint, commit id) pair or by a legacy hint-less
// marker carrying the same commit id.
func (s *MirroredSet) Contains(repoHint, commitID string) bool {
	if _, ok := s.pairs[pairKey{repoHint: repoHint, commitID: commitID}]; ok {
		return true
	}

	_, ok := s.bare[commitID]

	return ok
}

// Len returns the number of recorded markers.
func (s *MirroredSet) Len() int {
	return len(s.pairs) + len(s.bare)
}

// Mirrored walks the target repository's history from its current tip and
// collects every decodable marker. Malformed markers are logged and
// skipped; they never abort the walk.
func Mirrored(repo *gitrepo.Repo) (*MirroredSet, error) {
	const errCtx = "scanning target repository"

	set := NewMirroredSet()

	err := repo.WalkHead(func(c *object.Commit) error {
		m, decErr := marker.Decode(c.Message)
		if decErr != nil {
			if errors.Is(decErr, marker.ErrMalformedMarker) {
				slog.Warn(
					"skipping malformed marker",
					"commit", c.Hash.String(),
				)
			}

			return nil
		}

		set.Add(m)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return set, nil
}

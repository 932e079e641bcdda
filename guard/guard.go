// Package guard is the safety interlock protecting the target repository:
// no mutating operation runs unless the target's origin remote matches the
// expected canonical identity or the caller explicitly overrides the check.
package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teamdman/vanity/gitrepo"
)

// DefaultExpectedRemote is the canonical identity a target repository must
// carry before sync or rewrite will mutate it.
const DefaultExpectedRemote = "https://github.com/TeamDman/Vanity"

// ErrNotVanityTarget signals that the target's origin remote does not match
// the expected identity and no override was given.
var ErrNotVanityTarget = errors.New(
	"target repository origin does not match the expected vanity remote",
)

// Check verifies the target repository's origin remote against expected.
// Pass allowOverride true to skip the check entirely.
func Check(repo *gitrepo.Repo, expected string, allowOverride bool) error {
	const errCtx = "checking target remote"

	if allowOverride {
		return nil
	}

	origin := repo.OriginURL()
	if origin == "" {
		return fmt.Errorf(
			"%s: missing origin remote: %w", errCtx, ErrNotVanityTarget,
		)
	}

	if NormalizeRemoteURL(origin) != NormalizeRemoteURL(expected) {
		return fmt.Errorf(
			"%s: found %s, expected %s: %w",
			errCtx, origin, expected, ErrNotVanityTarget,
		)
	}

	return nil
}

// NormalizeRemoteURL canonicalizes a remote URL for comparison: lowercase,
// scp-style github remotes rewritten to https, ".git" suffix and trailing
// slashes stripped.
func NormalizeRemoteURL(url string) string {
	normalized := strings.ToLower(strings.TrimSpace(url))

	if path, ok := strings.CutPrefix(
		normalized, "git@github.com:",
	); ok {
		normalized = "https://github.com/" + path
	}

	normalized = strings.TrimSuffix(normalized, ".git")

	return strings.TrimRight(normalized, "/")
}

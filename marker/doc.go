// Package marker encodes and decodes the idempotency trailer embedded in
// mirror-commit messages. Each mirror commit carries a Vanity-Source-Commit
// line naming the source commit it stands in for, plus a repo hint and an
// optional web URL, so that repeated syncs can detect already-mirrored
// source commits by reading target history alone.
package marker

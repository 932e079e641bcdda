// Package syncer orchestrates a sync run: it scans the configured source
// repositories and the target repository, plans the set of source commits
// still needing mirroring, gates on the safety guard, and writes one empty
// mirror commit per pending source commit onto the target's tip. Every step
// rebuilds its view of history from scratch, so an interrupted run resumes
// cleanly on the next invocation.
package syncer

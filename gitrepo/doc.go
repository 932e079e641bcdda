// Package gitrepo wraps go-git with the repository operations the sync and
// rewrite pipelines need: history walks, remote and identity lookup, empty
// commit creation onto the current tip, raw replacement commits, and branch
// reference updates. All object-store and ref work goes through go-git; only
// the working-tree cleanliness check shells out to the git binary.
package gitrepo

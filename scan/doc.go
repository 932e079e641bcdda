// Package scan reads commit history on both sides of a sync: the source
// scanner walks each configured read repository and extracts descriptors of
// the commits eligible for mirroring, while the target scanner walks the
// vanity repository once and collects the set of source commits it already
// mirrors. Source repositories are independent of each other, so their scans
// run concurrently under a bounded worker pool.
package scan

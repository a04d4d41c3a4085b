// Package store keeps a log of random walks in SQLite.
//
// A walk row holds the resolved seed, the walk options and the mutation
// names: enough to run the walk again. Every attempted step is logged
// against it, and each particle's final tree is stored as a treeio document
// with its content hash. Replay reruns a completed walk and compares the
// hashes.
//
// Reads order by particle and iteration only. Nothing is timestamped, so
// two logs of the same walk read back identically.
package store

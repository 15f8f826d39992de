// Package vcs is the commit-graph engine: a content-addressable store of
// definition blobs, trees and commits backed by a bare Git object store,
// plus branch/tag refs and the three-way merge machinery.
//
// Trees map object identities to content hashes at one path per object
// (<schema>/<type>/<name>); commits form a DAG over trees. Blob, tree and
// commit writes are idempotent by content hash, so re-storing identical
// state never duplicates objects. Refs are the only mutable state and
// every ref update is a single compare-and-swap pointer write.
package vcs

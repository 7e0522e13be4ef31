// Package snapshot publishes a stored index directory to a blob store and
// fetches it back.
//
// A snapshot is an immutable set of blobs under "snapshots/<id>/" plus a
// MANIFEST.json listing every file with its size and xxhash64 checksum.
// Publishing uploads the files, then the manifest, then swings the CURRENT
// pointer to the new id. Readers resolve CURRENT, read the manifest and
// download each file atomically into the target directory, verifying sizes
// and checksums.
package snapshot

package snapshot

import (
	"errors"
	"time"
)

// ManifestName is the name of the manifest blob inside a snapshot.
const ManifestName = "MANIFEST.json"

var (
	// ErrNoSnapshot is returned when no snapshot has been published.
	ErrNoSnapshot = errors.New("snapshot: no snapshot published")
	// ErrEmptySnapshot is returned when publishing a directory with no files.
	ErrEmptySnapshot = errors.New("snapshot: directory is empty")
	// ErrChecksumMismatch is returned when fetched bytes do not match the manifest.
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	// ErrCorrupt is returned for unreadable or inconsistent manifests.
	ErrCorrupt = errors.New("snapshot: corrupt manifest")
)

// Manifest describes one published snapshot.
type Manifest struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Files   []File    `json:"files"`
}

// File is one entry of a manifest. Name is slash-separated and relative to
// the published directory.
type File struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum uint64 `json:"checksum"`
}

// Size returns the total size of all files.
func (m *Manifest) Size() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}

	return n
}

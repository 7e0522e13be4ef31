package index

import (
	"errors"
	"fmt"
)

var (
	// ErrDeleted is returned when adding a vector for an id deleted since
	// the last Store.
	ErrDeleted = errors.New("index: document is deleted")
	// ErrCorrupt marks an unreadable index file.
	ErrCorrupt = errors.New("index: corrupt index file")
)

// ErrLengthMismatch is returned by AddVectors when the vector and id slices
// differ in length.
type ErrLengthMismatch struct {
	Vectors int
	IDs     int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("index: %d vectors but %d ids", e.Vectors, e.IDs)
}

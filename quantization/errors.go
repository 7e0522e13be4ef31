package quantization

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned when encoding or searching before Train or Load.
	ErrNotTrained = errors.New("quantization: quantizer is not trained")

	// ErrNoTrainingData is returned when Train receives no vectors.
	ErrNoTrainingData = errors.New("quantization: no training vectors")

	// ErrAlreadyTrained is returned when Train is called on a trained
	// quantizer. Retraining means creating a new Quantizer.
	ErrAlreadyTrained = errors.New("quantization: quantizer is already trained")

	// ErrInvalidFormat indicates a persisted model that cannot be read back.
	ErrInvalidFormat = errors.New("quantization: invalid model format")
)

// ErrInvalidConfig indicates a configuration the quantizer cannot work with.
type ErrInvalidConfig struct {
	Segments  int
	Dimension int
	Reason    string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("quantization: invalid config (segments=%d, dimension=%d): %s", e.Segments, e.Dimension, e.Reason)
}

// ErrDimensionMismatch indicates a vector whose length differs from the
// configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrTopNExceedsCentroids indicates a request for more nearest centroids
// than a segment holds.
type ErrTopNExceedsCentroids struct {
	Segment   int
	TopN      int
	Centroids int
}

func (e *ErrTopNExceedsCentroids) Error() string {
	return fmt.Sprintf("quantization: topn %d exceeds the %d centroids of segment %d", e.TopN, e.Centroids, e.Segment)
}

// ErrInvalidCode indicates a code that does not match the quantizer.
type ErrInvalidCode struct {
	Segment int
	ID      int
}

func (e *ErrInvalidCode) Error() string {
	return fmt.Sprintf("quantization: invalid centroid id %d for segment %d", e.ID, e.Segment)
}

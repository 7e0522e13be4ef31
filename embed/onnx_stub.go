//go:build !cgo

package embed

import (
	"context"
	"errors"
)

// ErrONNXUnavailable is returned when the binary was built without cgo.
var ErrONNXUnavailable = errors.New("embed: ONNX embedder requires cgo and the onnxruntime library")

// ONNXEmbedder is unavailable without cgo.
type ONNXEmbedder struct{}

// NewONNXEmbedder always fails without cgo.
func NewONNXEmbedder(ONNXConfig) (*ONNXEmbedder, error) {
	return nil, ErrONNXUnavailable
}

// Embed implements Embedder.
func (*ONNXEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrONNXUnavailable
}

// EmbedBatch implements Embedder.
func (*ONNXEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrONNXUnavailable
}

// Dimensions implements Embedder.
func (*ONNXEmbedder) Dimensions() int { return 0 }

// Close implements Embedder.
func (*ONNXEmbedder) Close() error { return nil }

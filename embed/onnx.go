//go:build cgo

package embed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/vecsearch/distance"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrONNXUnavailable is returned when the onnxruntime environment cannot be
// initialized.
var ErrONNXUnavailable = errors.New("embed: onnxruntime unavailable")

var (
	ortOnce sync.Once
	ortErr  error
)

func initRuntime(libPath string) error {
	ortOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			ortErr = errors.Join(ErrONNXUnavailable, err)
		}
	})
	return ortErr
}

// ONNXEmbedder runs a BERT-style sentence-embedding model through
// onnxruntime. Calls are serialized because the session reuses its tensors.
type ONNXEmbedder struct {
	cfg ONNXConfig

	mu       sync.Mutex
	session  *ort.AdvancedSession
	inputs   []*ort.Tensor[int64]
	output   *ort.Tensor[float32]
	released bool
}

// NewONNXEmbedder loads the model described by cfg.
func NewONNXEmbedder(cfg ONNXConfig) (*ONNXEmbedder, error) {
	cfg = cfg.withDefaults()
	if err := initRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	e := &ONNXEmbedder{cfg: cfg}
	shape := ort.NewShape(1, int64(cfg.MaxTokens))
	for _, name := range cfg.InputNames {
		t, err := ort.NewTensor(shape, make([]int64, cfg.MaxTokens))
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("embed: create %s tensor: %w", name, err)
		}
		e.inputs = append(e.inputs, t)
	}

	out, err := ort.NewTensor(ort.NewShape(1, int64(cfg.Dimensions)), make([]float32, cfg.Dimensions))
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("embed: create output tensor: %w", err)
	}
	e.output = out

	inputs := make([]ort.ArbitraryTensor, len(e.inputs))
	for i, t := range e.inputs {
		inputs[i] = t
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath, cfg.InputNames, []string{cfg.OutputName},
		inputs, []ort.ArbitraryTensor{out}, nil)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("embed: create session: %w", err)
	}
	e.session = session
	return e, nil
}

// Embed implements Embedder. The output is L2-normalized.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask, types := e.cfg.Tokenizer.Tokenize(text, e.cfg.MaxTokens)
	feeds := [][]int64{ids, mask, types}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return nil, ErrONNXUnavailable
	}
	for i, t := range e.inputs {
		if i < len(feeds) {
			copy(t.GetData(), feeds[i])
		}
	}
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("embed: inference: %w", err)
	}

	v := make([]float32, e.cfg.Dimensions)
	copy(v, e.output.GetData())
	if !distance.NormalizeL2InPlace(v) {
		return nil, ErrEmptyText
	}
	return v, nil
}

// EmbedBatch implements Embedder.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions implements Embedder.
func (e *ONNXEmbedder) Dimensions() int { return e.cfg.Dimensions }

// Close releases the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released {
		return nil
	}
	e.released = true

	var err error
	if e.session != nil {
		err = e.session.Destroy()
	}
	for _, t := range e.inputs {
		_ = t.Destroy()
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	return err
}

package quantization

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hupe1980/vecsearch/internal/kmeans"
	"github.com/hupe1980/vecsearch/persistence"
)

const (
	// CentroidsFile holds the centroid lists by segment.
	CentroidsFile = "centroids.bin"
	// ParamsFile holds [segments, clusterCount, maxIterations, dimension].
	ParamsFile = "params.bin"
)

// Store writes the model into dir, creating it if needed.
func (q *Quantizer) Store(dir string) error {
	if !q.Trained() {
		return ErrNotTrained
	}
	dir, err := persistence.Dir(dir)
	if err != nil {
		return err
	}

	if err := persistence.Save(filepath.Join(dir, CentroidsFile), q.centroids, q.blobOpts...); err != nil {
		return fmt.Errorf("quantization: store centroids: %w", err)
	}
	params := []int{q.cfg.Segments, q.cfg.ClusterCount, q.cfg.MaxIterations, q.cfg.Dimension}
	if err := persistence.Save(filepath.Join(dir, ParamsFile), params, q.blobOpts...); err != nil {
		return fmt.Errorf("quantization: store params: %w", err)
	}

	q.logger.Info("quantizer stored", "dir", dir)
	return nil
}

// Load reads a model written by Store.
func Load(dir string, opts ...Option) (*Quantizer, error) {
	dir = filepath.Clean(dir)

	var params []int
	if err := persistence.Load(filepath.Join(dir, ParamsFile), &params); err != nil {
		return nil, fmt.Errorf("quantization: load params: %w", err)
	}
	if len(params) != 4 {
		return nil, fmt.Errorf("%w: expected 4 parameters, got %d", ErrInvalidFormat, len(params))
	}

	q, err := New(Config{
		Segments:      params[0],
		ClusterCount:  params[1],
		MaxIterations: params[2],
		Dimension:     params[3],
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidFormat, err)
	}

	var centroids [][]kmeans.Centroid
	if err := persistence.Load(filepath.Join(dir, CentroidsFile), &centroids); err != nil {
		return nil, fmt.Errorf("quantization: load centroids: %w", err)
	}
	if len(centroids) != q.cfg.Segments {
		return nil, fmt.Errorf("%w: expected %d segments, got %d", ErrInvalidFormat, q.cfg.Segments, len(centroids))
	}
	for s, cs := range centroids {
		if len(cs) == 0 {
			return nil, fmt.Errorf("%w: segment %d has no centroids", ErrInvalidFormat, s)
		}
		for _, c := range cs {
			if len(c.Vector) != q.subDim {
				return nil, fmt.Errorf("%w: segment %d centroid %d has length %d, expected %d",
					ErrInvalidFormat, s, c.ID, len(c.Vector), q.subDim)
			}
		}
	}

	q.setCentroids(centroids)
	q.logger.Info("quantizer loaded", "dir", dir, "segments", q.cfg.Segments, "dimension", q.cfg.Dimension)
	return q, nil
}

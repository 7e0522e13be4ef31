package config

import (
	"time"

	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/loader"
	"github.com/hupe1980/vecsearch/quantization"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = quantization.DefaultConfig().Dimension
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}

	qc := quantization.DefaultConfig()
	if cfg.Quantizer.Segments == 0 {
		cfg.Quantizer.Segments = qc.Segments
	}
	if cfg.Quantizer.ClusterCount == 0 {
		cfg.Quantizer.ClusterCount = qc.ClusterCount
	}
	if cfg.Quantizer.MaxIterations == 0 {
		cfg.Quantizer.MaxIterations = qc.MaxIterations
	}
	if cfg.Quantizer.MaxTrainVectors == 0 {
		cfg.Quantizer.MaxTrainVectors = qc.MaxTrainVectors
	}

	ic := index.DefaultConfig()
	if cfg.Index.MaxRecall == 0 {
		cfg.Index.MaxRecall = ic.MaxRecall
	}
	if cfg.Index.MapCapacity == 0 {
		cfg.Index.MapCapacity = ic.MapCapacity
	}
	if cfg.Index.MapLowWater == 0 {
		cfg.Index.MapLowWater = ic.MapLowWater
	}
	if cfg.Index.ReadWindow == 0 {
		cfg.Index.ReadWindow = ic.ReadWindow
	}

	if cfg.Loader.ChunkSize == 0 {
		cfg.Loader.ChunkSize = loader.DefaultChunkSize
	}
	if cfg.Loader.ChunkOverlap == 0 {
		cfg.Loader.ChunkOverlap = loader.DefaultOverlap
	}

	if cfg.Storage.Codec == "" {
		cfg.Storage.Codec = "msgpack"
	}
	if cfg.Storage.Compression == "" {
		cfg.Storage.Compression = "none"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.DefaultClusterTopN == 0 {
		cfg.Server.DefaultClusterTopN = 3
	}
	if cfg.Server.DefaultTopN == 0 {
		cfg.Server.DefaultTopN = 10
	}
	if cfg.Server.MaxTopN == 0 {
		cfg.Server.MaxTopN = 1000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}

	if cfg.Snapshot.Backend == "" {
		cfg.Snapshot.Backend = "local"
	}
	if cfg.Snapshot.Backend == "local" && cfg.Snapshot.LocalDir == "" {
		cfg.Snapshot.LocalDir = "snapshots"
	}
	if cfg.Snapshot.Keep == 0 {
		cfg.Snapshot.Keep = 3
	}
}

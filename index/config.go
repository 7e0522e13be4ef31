package index

import "math"

// Config holds the tunables of an Index.
type Config struct {
	// MaxRecall caps the recall set before reranking. The cap keeps ids in
	// bitmap iteration order (ascending id), not the closest ones.
	MaxRecall int
	// MapCapacity is the size of the mapped window used to write the
	// bitmap file.
	MapCapacity int64
	// MapLowWater is the headroom below which the write window is advanced.
	MapLowWater int64
	// ReadWindow bounds the size of each mapping when reading the bitmap file.
	ReadWindow int64
	// Workers limits rerank and batch-encode parallelism. Zero means GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRecall:   100_000,
		MapCapacity: 500 << 20,
		MapLowWater: 250 << 20,
		ReadWindow:  math.MaxInt32 / 2,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxRecall <= 0 {
		c.MaxRecall = def.MaxRecall
	}
	if c.MapCapacity <= 0 {
		c.MapCapacity = def.MapCapacity
	}
	if c.MapLowWater <= 0 {
		c.MapLowWater = def.MapLowWater
	}
	if c.ReadWindow <= 0 {
		c.ReadWindow = def.ReadWindow
	}
	return c
}

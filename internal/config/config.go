// Package config provides configuration loading and structs for the
// vecsearch command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/vecsearch/blobstore/minio"
	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/index"
	"github.com/hupe1980/vecsearch/persistence"
	"github.com/hupe1980/vecsearch/quantization"
	"github.com/hupe1980/vecsearch/resource"
)

// Directory names inside a collection's data directory.
const (
	ModelDir = "pqmodel"
	IndexDir = "index"
)

// Config holds all configuration for the application.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	Quantizer   QuantizerConfig    `yaml:"quantizer"`
	Index       IndexConfig        `yaml:"index"`
	Loader      LoaderConfig       `yaml:"loader"`
	Storage     StorageConfig      `yaml:"storage"`
	Server      ServerConfig       `yaml:"server"`
	Snapshot    SnapshotConfig     `yaml:"snapshot"`
	Collections []CollectionConfig `yaml:"collections"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is "onnx" or "hash".
	Provider          string `yaml:"provider"`
	ModelPath         string `yaml:"model_path"`
	SharedLibraryPath string `yaml:"shared_library_path"`
	Dimensions        int    `yaml:"dimensions"`
	MaxTokens         int    `yaml:"max_tokens"`
	CacheSize         int    `yaml:"cache_size"`
}

// QuantizerConfig mirrors quantization.Config.
type QuantizerConfig struct {
	Segments        int   `yaml:"segments"`
	ClusterCount    int   `yaml:"cluster_count"`
	MaxIterations   int   `yaml:"max_iterations"`
	MaxTrainVectors int   `yaml:"max_train_vectors"`
	Seed            int64 `yaml:"seed"`
	Workers         int   `yaml:"workers"`
}

// IndexConfig mirrors index.Config.
type IndexConfig struct {
	MaxRecall   int   `yaml:"max_recall"`
	MapCapacity int64 `yaml:"map_capacity"`
	MapLowWater int64 `yaml:"map_low_water"`
	ReadWindow  int64 `yaml:"read_window"`
	Workers     int   `yaml:"workers"`
}

// LoaderConfig holds chunking settings.
type LoaderConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// StorageConfig selects how artifacts are encoded on disk.
type StorageConfig struct {
	Codec       string `yaml:"codec"`
	Compression string `yaml:"compression"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	DefaultClusterTopN int           `yaml:"default_cluster_topn"`
	DefaultTopN        int           `yaml:"default_topn"`
	MaxTopN            int           `yaml:"max_topn"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SnapshotConfig selects the blob store snapshots are published to.
type SnapshotConfig struct {
	// Backend is "local", "s3" or "minio".
	Backend  string `yaml:"backend"`
	LocalDir string `yaml:"local_dir"`
	Bucket   string `yaml:"bucket"`
	// Prefix is the key prefix inside the bucket. Each collection
	// publishes below Prefix/<collection>.
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// DynamoDBTable enables the DynamoDB-guarded CURRENT pointer (s3 only).
	DynamoDBTable string          `yaml:"dynamodb_table"`
	MinIO         minio.Config    `yaml:"minio"`
	Transfers     resource.Config `yaml:"transfers"`
	Keep          int             `yaml:"keep"`
}

// CollectionConfig describes one searchable collection.
type CollectionConfig struct {
	Name string `yaml:"name"`
	// DataDir holds the pqmodel and index directories.
	DataDir string `yaml:"data_dir"`
	// FieldNames names the TAB-separated columns of the stored texts.
	FieldNames []string `yaml:"field_names"`
	// LexicalPath enables keyword filtering. "memory" keeps the keyword
	// index in process; any other value is a bleve index directory.
	LexicalPath string `yaml:"lexical_path"`
}

// ModelPath returns the quantizer directory of the collection.
func (c CollectionConfig) ModelPath() string {
	return filepath.Join(c.DataDir, ModelDir)
}

// IndexPath returns the index directory of the collection.
func (c CollectionConfig) IndexPath() string {
	return filepath.Join(c.DataDir, IndexDir)
}

// QuantizationConfig converts to quantization.Config.
func (c *Config) QuantizationConfig() quantization.Config {
	return quantization.Config{
		Segments:        c.Quantizer.Segments,
		ClusterCount:    c.Quantizer.ClusterCount,
		MaxIterations:   c.Quantizer.MaxIterations,
		Dimension:       c.Embedding.Dimensions,
		MaxTrainVectors: c.Quantizer.MaxTrainVectors,
		Seed:            c.Quantizer.Seed,
		Workers:         c.Quantizer.Workers,
	}
}

// IndexConfig converts to index.Config.
func (c *Config) IndexConfig() index.Config {
	return index.Config{
		MaxRecall:   c.Index.MaxRecall,
		MapCapacity: c.Index.MapCapacity,
		MapLowWater: c.Index.MapLowWater,
		ReadWindow:  c.Index.ReadWindow,
		Workers:     c.Index.Workers,
	}
}

// Collection returns the collection named name. An empty name selects the
// first collection.
func (c *Config) Collection(name string) (CollectionConfig, error) {
	if len(c.Collections) == 0 {
		return CollectionConfig{}, errors.New("no collections configured")
	}

	if name == "" {
		return c.Collections[0], nil
	}

	for _, col := range c.Collections {
		if col.Name == name {
			return col, nil
		}
	}

	return CollectionConfig{}, fmt.Errorf("unknown collection %q", name)
}

// Validate reports configuration errors that defaults cannot fix.
func (c *Config) Validate() error {
	var errs []error

	switch c.Embedding.Provider {
	case "onnx":
		if c.Embedding.ModelPath == "" {
			errs = append(errs, errors.New("embedding.model_path is required for the onnx provider"))
		}
	case "hash":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}

	if _, ok := codec.ByName(c.Storage.Codec); !ok {
		errs = append(errs, fmt.Errorf("unknown storage codec %q (one of %s)", c.Storage.Codec, strings.Join(codec.Names(), ", ")))
	}
	if _, err := persistence.ParseCompression(c.Storage.Compression); err != nil {
		errs = append(errs, fmt.Errorf("storage.compression: %w", err))
	}

	switch c.Snapshot.Backend {
	case "local":
	case "s3", "minio":
		if c.Snapshot.Bucket == "" {
			errs = append(errs, fmt.Errorf("snapshot.bucket is required for the %s backend", c.Snapshot.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend))
	}

	seen := make(map[string]bool, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			errs = append(errs, fmt.Errorf("collections[%d].name is required", i))
		}
		if col.DataDir == "" {
			errs = append(errs, fmt.Errorf("collections[%d].data_dir is required", i))
		}
		if seen[col.Name] {
			errs = append(errs, fmt.Errorf("duplicate collection %q", col.Name))
		}
		seen[col.Name] = true
	}

	return errors.Join(errs...)
}

// Load reads and parses the config file at path, applies defaults and
// resolves relative paths against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.resolvePaths(filepath.Dir(path))

	return cfg, nil
}

// Parse parses YAML and applies defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (c *Config) resolvePaths(configDir string) {
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	c.Embedding.SharedLibraryPath = expandPath(c.Embedding.SharedLibraryPath, configDir)
	c.Snapshot.LocalDir = expandPath(c.Snapshot.LocalDir, configDir)

	for i := range c.Collections {
		c.Collections[i].DataDir = expandPath(c.Collections[i].DataDir, configDir)
		if c.Collections[i].LexicalPath != "memory" {
			c.Collections[i].LexicalPath = expandPath(c.Collections[i].LexicalPath, configDir)
		}
	}
}

// expandPath makes relative paths relative to configDir and expands a
// leading "~/" to the home directory. Empty paths stay empty.
func expandPath(path, configDir string) string {
	switch {
	case path == "" || filepath.IsAbs(path):
		return path
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	default:
		return filepath.Join(configDir, path)
	}
}

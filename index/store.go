package index

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/vecsearch/internal/mmap"
	"github.com/hupe1980/vecsearch/persistence"
)

// File suffixes of a stored index.
const (
	KeySuffix    = ".key"
	BitmapSuffix = ".bitmap"
	VectorSuffix = ".vector"
)

// Files returns the paths Store writes for prefix under dir.
func Files(dir, prefix string) (keys, bitmaps, vectors string) {
	base := filepath.Join(filepath.Clean(dir), prefix)
	return base + KeySuffix, base + BitmapSuffix, base + VectorSuffix
}

// Store removes deleted ids from postings and raw vectors, then writes the
// index under dir:
//
//   - <prefix>.key: term keys in ascending order
//   - <prefix>.bitmap: one length-prefixed portable roaring bitmap per key,
//     in the same order
//   - <prefix>.vector: the raw-vector table
func (x *Index) Store(dir, prefix string) error {
	dir, err := persistence.Dir(dir)
	if err != nil {
		return err
	}
	keyFile, bitmapFile, vectorFile := Files(dir, prefix)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.compact()

	keys := make([]uint64, 0, len(x.postings))
	for key := range x.postings {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	if err := persistence.Save(keyFile, keys, x.blobOpts...); err != nil {
		return fmt.Errorf("index: store keys: %w", err)
	}
	size, err := x.writeBitmaps(bitmapFile, keys)
	if err != nil {
		return fmt.Errorf("index: store bitmaps: %w", err)
	}
	if err := persistence.Save(vectorFile, x.vectors, x.blobOpts...); err != nil {
		return fmt.Errorf("index: store vectors: %w", err)
	}

	x.logger.Info("index stored",
		"dir", dir,
		"prefix", prefix,
		"terms", len(keys),
		"documents", len(x.vectors),
		"bitmap_bytes", size,
	)
	return nil
}

// compact drops deleted ids everywhere and clears the tombstones.
func (x *Index) compact() {
	if x.tombstones.IsEmpty() {
		return
	}
	for key, p := range x.postings {
		p.AndNot(x.tombstones)
		if p.IsEmpty() {
			delete(x.postings, key)
		}
	}
	it := x.tombstones.Iterator()
	for it.HasNext() {
		delete(x.vectors, it.Next())
	}

	x.logger.Debug("tombstones compacted", "count", x.tombstones.GetCardinality())
	x.tombstones.Clear()
}

func (x *Index) writeBitmaps(path string, keys []uint64) (int64, error) {
	tmp := path + ".tmp"
	w, err := mmap.Create(tmp, mmap.WriterConfig{
		Capacity: x.cfg.MapCapacity,
		LowWater: x.cfg.MapLowWater,
	})
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		p := x.postings[key]
		p.RunOptimize()
		data, err := p.ToBytes()
		if err == nil {
			err = w.WriteRecord(data)
		}
		if err != nil {
			_ = w.Close()
			_ = os.Remove(tmp)
			return 0, err
		}
	}

	if err := w.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if w.Remaps() > 0 {
		x.logger.Debug("bitmap window remapped", "remaps", w.Remaps())
	}
	return w.Size(), os.Rename(tmp, path)
}

// Load replaces the contents of x with the index stored under dir.
// Ids deleted on x before the call are filtered out while reading.
//
// Missing files are created empty and yield an empty index. A corrupt file
// is logged and also yields an empty index. Only a failure to create dir is
// returned.
func (x *Index) Load(dir, prefix string) error {
	dir, err := persistence.Dir(dir)
	if err != nil {
		return err
	}
	keyFile, bitmapFile, vectorFile := Files(dir, prefix)

	for _, f := range []string{keyFile, bitmapFile, vectorFile} {
		x.touch(f)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	postings, vectors, err := x.read(keyFile, bitmapFile, vectorFile)
	if err != nil {
		x.logger.Error("index unreadable, starting empty", "dir", dir, "prefix", prefix, "error", err)
		postings = make(map[uint64]*roaring.Bitmap)
		vectors = make(map[uint32][][]float32)
	}

	x.postings = postings
	x.vectors = vectors

	x.logger.Info("index loaded",
		"dir", dir,
		"prefix", prefix,
		"terms", len(postings),
		"documents", len(vectors),
	)
	return nil
}

// touch creates path empty if it does not exist.
func (x *Index) touch(path string) {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return
	}
	x.logger.Warn("index file missing, creating empty", "path", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		x.logger.Error("create index file", "path", path, "error", err)
		return
	}
	_ = f.Close()
}

func (x *Index) read(keyFile, bitmapFile, vectorFile string) (map[uint64]*roaring.Bitmap, map[uint32][][]float32, error) {
	var keys []uint64
	if err := loadBlob(keyFile, &keys); err != nil {
		return nil, nil, fmt.Errorf("keys: %w", err)
	}

	postings, err := x.readBitmaps(bitmapFile, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("bitmaps: %w", err)
	}

	vectors := make(map[uint32][][]float32)
	if err := loadBlob(vectorFile, &vectors); err != nil {
		return nil, nil, fmt.Errorf("vectors: %w", err)
	}
	if vectors == nil {
		vectors = make(map[uint32][][]float32)
	}
	for id := range vectors {
		if x.tombstones.Contains(id) {
			delete(vectors, id)
		}
	}

	return postings, vectors, nil
}

func (x *Index) readBitmaps(path string, keys []uint64) (map[uint64]*roaring.Bitmap, error) {
	r, err := mmap.OpenReader(path, x.cfg.ReadWindow)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	postings := make(map[uint64]*roaring.Bitmap, len(keys))
	for i, key := range keys {
		data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %d keys but %d bitmaps", ErrCorrupt, len(keys), i)
		}
		if err != nil {
			return nil, errors.Join(ErrCorrupt, err)
		}

		p := roaring.New()
		if err := p.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("%w: bitmap %d: %w", ErrCorrupt, i, err)
		}
		p.AndNot(x.tombstones)
		if p.IsEmpty() {
			continue
		}
		if existing, ok := postings[key]; ok {
			existing.Or(p)
		} else {
			postings[key] = p
		}
	}

	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: more bitmaps than %d keys", ErrCorrupt, len(keys))
	}
	if r.Remaps() > 0 {
		x.logger.Debug("bitmap window remapped", "remaps", r.Remaps())
	}
	return postings, nil
}

// loadBlob leaves v untouched for an empty file.
func loadBlob(path string, v any) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		return nil
	}
	return persistence.Load(path, v)
}

package persistence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const bufferSize = 256 * 1024

// Dir normalizes dir (trailing separators, duplicate separators) and
// creates it if it does not exist.
func Dir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("persistence: create directory %s: %w", dir, err)
	}
	return dir, nil
}

// SaveToFile writes a file atomically: writeFunc fills a temp file in the
// same directory, which is synced and renamed over filename.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, bufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, bufferSize))
}

// Save encodes v as a blob and writes it atomically to filename.
func Save(filename string, v any, opts ...BlobOption) error {
	return SaveToFile(filename, func(w io.Writer) error {
		return WriteBlob(w, v, opts...)
	})
}

// Load reads the blob at filename into v.
func Load(filename string, v any) error {
	return LoadFromFile(filename, func(r io.Reader) error {
		return ReadBlob(r, v)
	})
}

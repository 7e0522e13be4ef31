package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/vecsearch/codec"
)

// Blob header layout (little endian):
//
//	magic [4]byte "VSB1"
//	version uint16
//	compression uint8
//	codecLen uint8, codec name [codecLen]byte
//	checksum uint32 (CRC32 IEEE of the stored payload)
//	rawSize uint64, storedSize uint64
//	payload [storedSize]byte
const (
	blobMagic   = "VSB1"
	blobVersion = 1
)

var (
	// ErrInvalidMagic indicates the input is not a blob.
	ErrInvalidMagic = errors.New("persistence: invalid magic number")
	// ErrInvalidVersion indicates a blob written by an unsupported format version.
	ErrInvalidVersion = errors.New("persistence: unsupported version")
	// ErrChecksumMismatch indicates a corrupt payload.
	ErrChecksumMismatch = errors.New("persistence: checksum mismatch")
	// ErrUnknownCodec indicates a codec name with no built-in implementation.
	ErrUnknownCodec = errors.New("persistence: unknown codec")
	// ErrUnknownCompression indicates an unsupported compression algorithm.
	ErrUnknownCompression = errors.New("persistence: unknown compression")
)

type blobOptions struct {
	codec       codec.Codec
	compression Compression
}

// BlobOption configures WriteBlob.
type BlobOption func(*blobOptions)

// WithCodec selects the codec. Default: codec.Default.
func WithCodec(c codec.Codec) BlobOption {
	return func(o *blobOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCompression selects the payload compression. Default: none.
func WithCompression(c Compression) BlobOption {
	return func(o *blobOptions) {
		o.compression = c
	}
}

// WriteBlob encodes v and writes it with a blob header to w.
func WriteBlob(w io.Writer, v any, opts ...BlobOption) error {
	o := blobOptions{codec: codec.Default}
	for _, opt := range opts {
		opt(&o)
	}

	name := o.codec.Name()
	if len(name) > 255 {
		return fmt.Errorf("%w: name too long", ErrUnknownCodec)
	}

	raw, err := o.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("persistence: encode with %s: %w", name, err)
	}
	stored, used, err := compress(raw, o.compression)
	if err != nil {
		return fmt.Errorf("persistence: compress with %s: %w", o.compression, err)
	}

	hdr := make([]byte, 0, 4+2+1+1+len(name)+4+8+8)
	hdr = append(hdr, blobMagic...)
	hdr = binary.LittleEndian.AppendUint16(hdr, blobVersion)
	hdr = append(hdr, byte(used), byte(len(name)))
	hdr = append(hdr, name...)
	hdr = binary.LittleEndian.AppendUint32(hdr, crc32.ChecksumIEEE(stored))
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(len(raw)))
	hdr = binary.LittleEndian.AppendUint64(hdr, uint64(len(stored)))

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// ReadBlob reads one blob from r and decodes it into v with the codec named
// in its header.
func ReadBlob(r io.Reader, v any) error {
	var fixed [8]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return fmt.Errorf("persistence: read header: %w", err)
	}
	if string(fixed[:4]) != blobMagic {
		return ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(fixed[4:6]); ver != blobVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, ver)
	}
	comp := Compression(fixed[6])

	name := make([]byte, fixed[7])
	if _, err := io.ReadFull(r, name); err != nil {
		return fmt.Errorf("persistence: read codec name: %w", err)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}

	var sizes [20]byte
	if _, err := io.ReadFull(r, sizes[:]); err != nil {
		return fmt.Errorf("persistence: read header: %w", err)
	}
	sum := binary.LittleEndian.Uint32(sizes[0:4])
	rawSize := binary.LittleEndian.Uint64(sizes[4:12])
	storedSize := binary.LittleEndian.Uint64(sizes[12:20])

	stored, err := io.ReadAll(io.LimitReader(r, int64(storedSize)))
	if err != nil {
		return fmt.Errorf("persistence: read payload: %w", err)
	}
	if uint64(len(stored)) != storedSize {
		return fmt.Errorf("persistence: read payload: %w", io.ErrUnexpectedEOF)
	}
	if crc32.ChecksumIEEE(stored) != sum {
		return ErrChecksumMismatch
	}

	raw, err := decompress(stored, comp, rawSize)
	if err != nil {
		return fmt.Errorf("persistence: decompress %s: %w", comp, err)
	}
	if err := c.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("persistence: decode with %s: %w", c.Name(), err)
	}
	return nil
}

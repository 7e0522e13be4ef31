package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecsearch/blobstore"
	"github.com/hupe1980/vecsearch/codec"
	"github.com/hupe1980/vecsearch/persistence"
	"github.com/hupe1980/vecsearch/resource"
)

// DefaultPrefix is the blob prefix snapshots are stored under.
const DefaultPrefix = "snapshots/"

// Syncer publishes and fetches snapshots.
type Syncer struct {
	store  blobstore.BlobStore
	rc     *resource.Controller
	logger *slog.Logger
	prefix string
	now    func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithController sets the transfer limits.
func WithController(rc *resource.Controller) Option {
	return func(s *Syncer) {
		if rc != nil {
			s.rc = rc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPrefix changes the blob prefix snapshots are stored under.
func WithPrefix(prefix string) Option {
	return func(s *Syncer) {
		if p := strings.Trim(prefix, "/"); p != "" {
			s.prefix = p + "/"
		}
	}
}

// New creates a Syncer over store.
func New(store blobstore.BlobStore, opts ...Option) *Syncer {
	s := &Syncer{
		store:  store,
		rc:     resource.NewController(resource.Config{}),
		logger: slog.New(slog.DiscardHandler),
		prefix: DefaultPrefix,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Syncer) blobName(id, name string) string {
	return s.prefix + id + "/" + name
}

// Publish uploads every regular file below dir as a new snapshot and makes
// it current.
func (s *Syncer) Publish(ctx context.Context, dir string) (*Manifest, error) {
	dir = filepath.Clean(dir)

	names, err := scan(dir)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrEmptySnapshot
	}

	uid, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		ID:      uid.String(),
		Created: s.now().UTC(),
		Files:   make([]File, len(names)),
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(s.rc.Config().MaxTransfers))

	for i, name := range names {
		g.Go(func() error {
			f, err := s.upload(gctx, dir, m.ID, name)
			m.Files[i] = f
			return err
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(context.WithoutCancel(ctx), m.ID)
		return nil, err
	}

	data, err := codec.GoJSON{}.Marshal(m)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, s.blobName(m.ID, ManifestName), data); err != nil {
		s.discard(context.WithoutCancel(ctx), m.ID)
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}

	if err := s.store.Put(ctx, blobstore.Current, []byte(m.ID)); err != nil {
		return nil, fmt.Errorf("snapshot: update %s: %w", blobstore.Current, err)
	}

	s.logger.InfoContext(ctx, "snapshot published",
		"id", m.ID,
		"files", len(m.Files),
		"bytes", m.Size(),
		"duration", time.Since(start),
	)

	return m, nil
}

// scan returns the sorted slash-separated names of the regular files below
// dir, skipping unfinished temp files.
func scan(dir string) ([]string, error) {
	var names []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || strings.Contains(d.Name(), ".tmp-") {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		names = append(names, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: scan %s: %w", dir, err)
	}

	slices.Sort(names)

	return names, nil
}

func (s *Syncer) upload(ctx context.Context, dir, id, name string) (File, error) {
	if err := s.rc.Acquire(ctx); err != nil {
		return File{}, err
	}
	defer s.rc.Release()

	src, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return File{}, err
	}
	defer src.Close()

	w, err := s.store.Create(ctx, s.blobName(id, name))
	if err != nil {
		return File{}, err
	}

	h := xxhash.New()

	n, err := io.Copy(w, io.TeeReader(resource.NewRateLimitedReader(ctx, src, s.rc), h))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return File{}, fmt.Errorf("snapshot: upload %s: %w", name, err)
	}

	return File{Name: name, Size: n, Checksum: h.Sum64()}, nil
}

// discard removes the blobs of a failed publish.
func (s *Syncer) discard(ctx context.Context, id string) {
	if err := s.deleteSnapshot(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to clean up snapshot", "id", id, "error", err)
	}
}

func (s *Syncer) deleteSnapshot(ctx context.Context, id string) error {
	// The manifest goes first so a partially deleted snapshot is never listed.
	if err := s.store.Delete(ctx, s.blobName(id, ManifestName)); err != nil {
		return err
	}

	names, err := s.store.List(ctx, s.prefix+id+"/")
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range names {
		errs = append(errs, s.store.Delete(ctx, name))
	}

	return errors.Join(errs...)
}

// Current returns the id CURRENT points at.
func (s *Syncer) Current(ctx context.Context) (string, error) {
	data, err := blobstore.ReadAll(ctx, s.store, blobstore.Current)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoSnapshot
		}
		return "", err
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoSnapshot
	}

	return id, nil
}

// Manifest reads the manifest of snapshot id.
func (s *Syncer) Manifest(ctx context.Context, id string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, s.store, s.blobName(id, ManifestName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: snapshot %s has no manifest", ErrNoSnapshot, id)
		}
		return nil, err
	}

	var m Manifest
	if err := (codec.GoJSON{}).Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	if m.ID != id {
		return nil, fmt.Errorf("%w: manifest id %q in snapshot %q", ErrCorrupt, m.ID, id)
	}

	for _, f := range m.Files {
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) {
			return nil, fmt.Errorf("%w: invalid file name %q", ErrCorrupt, f.Name)
		}
	}

	return &m, nil
}

// Fetch downloads the current snapshot into dir.
func (s *Syncer) Fetch(ctx context.Context, dir string) (*Manifest, error) {
	id, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	return s.FetchID(ctx, id, dir)
}

// FetchID downloads snapshot id into dir. Each file is written atomically;
// files in dir that are not part of the snapshot are left alone.
func (s *Syncer) FetchID(ctx context.Context, id, dir string) (*Manifest, error) {
	m, err := s.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}

	dir, err = persistence.Dir(dir)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(s.rc.Config().MaxTransfers))

	for _, f := range m.Files {
		g.Go(func() error {
			return s.download(gctx, id, dir, f)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "snapshot fetched",
		"id", m.ID,
		"files", len(m.Files),
		"bytes", m.Size(),
		"duration", time.Since(start),
	)

	return m, nil
}

func (s *Syncer) download(ctx context.Context, id, dir string, f File) error {
	if err := s.rc.Acquire(ctx); err != nil {
		return err
	}
	defer s.rc.Release()

	blob, err := s.store.Open(ctx, s.blobName(id, f.Name))
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", f.Name, err)
	}
	defer blob.Close()

	if blob.Size() != f.Size {
		return fmt.Errorf("%w: %s has %d bytes, manifest says %d", ErrChecksumMismatch, f.Name, blob.Size(), f.Size)
	}

	body, err := blob.ReadRange(ctx, 0, f.Size)
	if err != nil {
		return fmt.Errorf("snapshot: read %s: %w", f.Name, err)
	}
	defer body.Close()

	target := filepath.Join(dir, filepath.FromSlash(f.Name))
	if _, err := persistence.Dir(filepath.Dir(target)); err != nil {
		return err
	}

	return persistence.SaveToFile(target, func(w io.Writer) error {
		h := xxhash.New()

		n, err := io.Copy(io.MultiWriter(w, h), resource.NewRateLimitedReader(ctx, body, s.rc))
		if err != nil {
			return fmt.Errorf("snapshot: download %s: %w", f.Name, err)
		}

		if n != f.Size || h.Sum64() != f.Checksum {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, f.Name)
		}

		return nil
	})
}

// List returns the ids of all published snapshots, oldest first.
func (s *Syncer) List(ctx context.Context) ([]string, error) {
	names, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, name := range names {
		rest := strings.TrimPrefix(name, s.prefix)
		if id, ok := strings.CutSuffix(rest, "/"+ManifestName); ok && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}

	// Ids are UUIDv7 strings, so lexical order is creation order.
	slices.Sort(ids)

	return ids, nil
}

// Prune deletes all but the newest keep snapshots. The current snapshot is
// never deleted. It returns the deleted ids.
func (s *Syncer) Prune(ctx context.Context, keep int) ([]string, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	current, err := s.Current(ctx)
	if err != nil && !errors.Is(err, ErrNoSnapshot) {
		return nil, err
	}

	keep = max(keep, 0)

	var deleted []string
	for i, id := range ids {
		if i >= len(ids)-keep || id == current {
			continue
		}

		if err := s.deleteSnapshot(ctx, id); err != nil {
			return deleted, fmt.Errorf("snapshot: prune %s: %w", id, err)
		}

		deleted = append(deleted, id)
	}

	if len(deleted) > 0 {
		s.logger.InfoContext(ctx, "snapshots pruned", "deleted", len(deleted), "kept", len(ids)-len(deleted))
	}

	return deleted, nil
}

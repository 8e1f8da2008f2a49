// Package blobstore implements the content-addressed, sharded blob
// store (spec.md §4.3): two-level hash-prefix directories, crash-safe
// writes via temp-then-rename, and read-and-concatenate for
// partitioned blobs.
//
// Grounded on drivers/storage/local_store.go's sanitizePath/WriteFile
// shape, adapted to the shard layout and to write-to-temp-then-rename
// instead of write-direct-then-remove-on-failure, since spec.md §4.3
// requires single-blob write atomicity across a crash.
package blobstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/partition"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store manages the blobs/ directory tree of one archive.
type Store struct {
	root    string // archive-root/blobs
	tempDir string // archive-root/.dlfi/temp
	logger  *logrus.Logger
}

// Open ensures root and tempDir exist and purges any leftover temp
// files from a prior crash (spec.md §4.3: "any temporary files in
// shards must be discardable on next open").
func Open(root, tempDir string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &archiveerr.IOError{Op: "create blob root", Err: err}
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, &archiveerr.IOError{Op: "create temp dir", Err: err}
	}

	s := &Store{root: root, tempDir: tempDir, logger: logger}
	if err := s.PurgeTemp(); err != nil {
		return nil, err
	}
	return s, nil
}

// PurgeTemp discards scratch files left behind by an interrupted write.
func (s *Store) PurgeTemp() error {
	entries, err := os.ReadDir(s.tempDir)
	if err != nil {
		return &archiveerr.IOError{Op: "read temp dir", Err: err}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.tempDir, e.Name())); err != nil {
			s.logger.WithError(err).WithField("entry", e.Name()).Warn("failed to purge stale temp file")
		}
	}
	return nil
}

// Write stores sealed (already encrypted, if applicable) bytes under
// hash, splitting them into parts according to p. It returns the
// relative storage_path (spec.md §3: "aa/bb/<hash>") and the part count
// to persist in the catalog.
func (s *Store) Write(hash string, sealed []byte, p partition.Partitioner) (storagePath string, partCount int, err error) {
	shardDir := partition.ShardDir(s.root, hash)
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		return "", 0, &archiveerr.IOError{Op: "create shard dir", Err: err}
	}

	partCount = p.PartCount(int64(len(sealed)))
	names := partition.ListPartNames(hash, partCount)
	chunks := p.Split(sealed)
	if len(chunks) != len(names) {
		return "", 0, fmt.Errorf("internal error: %d chunks for %d names", len(chunks), len(names))
	}

	written := make([]string, 0, len(names))
	for i, name := range names {
		finalPath := filepath.Join(shardDir, name)
		if err := s.writeAtomic(finalPath, chunks[i]); err != nil {
			for _, wp := range written {
				os.Remove(wp)
			}
			return "", 0, err
		}
		written = append(written, finalPath)
	}

	relShard := filepath.Join(hash[0:2], hash[2:4], hash)
	return filepath.ToSlash(relShard), partCount, nil
}

// writeAtomic writes data to a temp file in s.tempDir and renames it
// into place. Rename within the same filesystem is assumed atomic
// (spec.md §4.3).
func (s *Store) writeAtomic(finalPath string, data []byte) error {
	tmp := filepath.Join(s.tempDir, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return &archiveerr.IOError{Op: "create temp blob file", Err: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return &archiveerr.IOError{Op: "write temp blob file", Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &archiveerr.IOError{Op: "close temp blob file", Err: err}
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		os.Remove(tmp)
		return &archiveerr.IOError{Op: "rename blob into place", Err: err}
	}
	return nil
}

// Read reconstitutes the full sealed byte buffer for hash given its
// partCount as recorded in the catalog.
func (s *Store) Read(hash string, partCount int) ([]byte, error) {
	shardDir := partition.ShardDir(s.root, hash)
	names := partition.ListPartNames(hash, partCount)

	var out []byte
	for _, name := range names {
		path := filepath.Join(shardDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, &archiveerr.NotFoundError{Kind: "blob", What: hash}
			}
			return nil, &archiveerr.IOError{Op: "read blob part", Err: err}
		}
		out = append(out, data...)
	}
	return out, nil
}

// ListParts returns the ordered absolute file paths that constitute a
// blob, distinguishing the single-file and partitioned layouts.
func (s *Store) ListParts(hash string, partCount int) []string {
	shardDir := partition.ShardDir(s.root, hash)
	names := partition.ListPartNames(hash, partCount)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(shardDir, n)
	}
	return paths
}

// Delete removes every part file for hash. It is not an error if the
// files are already absent.
func (s *Store) Delete(hash string, partCount int) error {
	for _, path := range s.ListParts(hash, partCount) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return &archiveerr.IOError{Op: "delete blob part", Err: err}
		}
	}
	return nil
}

// Package partition splits and rejoins large byte buffers into ordered,
// fixed-size chunks so blobs stay under a configurable per-file size
// (e.g. a hosting provider's per-file limit). Partitioning happens after
// encryption: the bytes handed to Split are whatever the blob store is
// about to write to disk.
package partition

import (
	"fmt"
	"path/filepath"
)

// Partitioner configures how a blob's bytes are split into ordered parts.
type Partitioner struct {
	// ChunkSize is the maximum size, in bytes, of a single part. Zero
	// disables partitioning entirely.
	ChunkSize int64
}

// New constructs a Partitioner. Only a negative size is rejected; zero
// disables partitioning and any positive size (including sub-MiB sizes
// such as a test's 10-byte chunks) is accepted, matching
// original_source/dlfi/partition.py's setter, which enforces no floor
// above zero.
func New(chunkSize int64) (Partitioner, error) {
	if chunkSize < 0 {
		return Partitioner{}, fmt.Errorf("partition size %d must not be negative", chunkSize)
	}
	return Partitioner{ChunkSize: chunkSize}, nil
}

// NeedsPartitioning reports whether n bytes must be split under this
// configuration.
func (p Partitioner) NeedsPartitioning(n int64) bool {
	return p.ChunkSize > 0 && n > p.ChunkSize
}

// Split yields contiguous slices of data, each at most ChunkSize bytes,
// in order. With ChunkSize <= 0 it returns data whole as a single part.
func (p Partitioner) Split(data []byte) [][]byte {
	if p.ChunkSize <= 0 {
		return [][]byte{data}
	}
	var parts [][]byte
	for off := int64(0); off < int64(len(data)); off += p.ChunkSize {
		end := off + p.ChunkSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		parts = append(parts, data[off:end])
	}
	if len(parts) == 0 {
		parts = [][]byte{{}}
	}
	return parts
}

// PartCount returns how many parts Split(data) of length n would
// produce under this configuration: 0 means "stored as a single file",
// matching the Blob.part_count contract in spec.md §3.
func (p Partitioner) PartCount(n int64) int {
	if !p.NeedsPartitioning(n) {
		return 0
	}
	count := n / p.ChunkSize
	if n%p.ChunkSize != 0 {
		count++
	}
	return int(count)
}

// PartFileName returns the on-disk file name for the 1-indexed part i
// of partCount total parts of hash, per spec.md §6's
// "<hash>.NNN" zero-padded 3-digit convention. partCount == 0 means the
// single-file layout and returns the bare hash.
func PartFileName(hash string, i, partCount int) string {
	if partCount == 0 {
		return hash
	}
	return fmt.Sprintf("%s.%03d", hash, i)
}

// ListPartNames returns the ordered file names (not full paths) that
// constitute a blob with the given hash and part count.
func ListPartNames(hash string, partCount int) []string {
	if partCount == 0 {
		return []string{hash}
	}
	names := make([]string, 0, partCount)
	for i := 1; i <= partCount; i++ {
		names = append(names, PartFileName(hash, i, partCount))
	}
	return names
}

// ShardDir returns the two-level shard directory (aa/bb) for hash,
// joined under root.
func ShardDir(root, hash string) string {
	if len(hash) < 4 {
		return filepath.Join(root, hash)
	}
	return filepath.Join(root, hash[0:2], hash[2:4])
}

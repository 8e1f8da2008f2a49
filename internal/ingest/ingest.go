// Package ingest implements the content-addressed write path (spec.md
// §4.6): hash, dedupe against the catalog, encrypt, partition, write to
// the blob store, and link the result to a Record node — all inside one
// catalog transaction. Grounded on
// services/content/storage_manager.go's SaveWithEncryption, simplified
// to this archive's single-file-link-per-ingest contract.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/blobstore"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/partition"
	"github.com/dlfi/archive/internal/vaultcrypto"
	"github.com/jmoiron/sqlx"
)

// Pipeline wires together the components an ingest call needs: the
// catalog to link into, the blob store to write sealed bytes to, the
// crypto to seal them with, and the partitioner controlling chunk size.
type Pipeline struct {
	Catalog     *catalog.Catalog
	Blobs       *blobstore.Store
	Crypto      *vaultcrypto.Crypto
	Partitioner partition.Partitioner
}

// Result describes the outcome of one ingest call.
type Result struct {
	NodeID       string
	BlobHash     string
	Deduplicated bool // true if an identical-plaintext blob already existed
	DisplayOrder int
}

// IngestFile reads the file at sourcePath in full and links it to the
// existing Record node nodeID; it creates no nodes. Resolving a path to
// that ID, and creating intermediate Vaults, is the caller's job via
// pathresolver.
func (p *Pipeline) IngestFile(ctx context.Context, sourcePath, nodeID, originalName string, tags []string) (*Result, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "open ingest source", Err: err}
	}
	defer f.Close()

	if originalName == "" {
		originalName = filepath.Base(sourcePath)
	}
	return p.IngestStream(ctx, f, nodeID, originalName, tags)
}

// IngestStream buffers r fully, computes its plaintext hash, and runs
// the dedupe/encrypt/partition/write/link pipeline in one catalog
// transaction. Buffering is required to compute the SHA-256 key before
// any encryption or partitioning can happen. tags, if non-empty, are
// attached to nodeID atomically with the file-link insert — the hook
// an extractor would use, reimplemented here as a plain parameter since
// extractors are an external collaborator (SPEC_FULL.md §5.6).
func (p *Pipeline) IngestStream(ctx context.Context, r io.Reader, nodeID, originalName string, tags []string) (*Result, error) {
	var buf bytes.Buffer
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(&buf, h), r); err != nil {
		return nil, &archiveerr.IOError{Op: "read ingest stream", Err: err}
	}
	hash := hex.EncodeToString(h.Sum(nil))
	plaintext := buf.Bytes()

	var result *Result
	txErr := p.Catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		target, err := catalog.GetNode(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		if target.Type != catalog.Record {
			return &archiveerr.WrongTypeError{Expected: string(catalog.Record), Actual: string(target.Type), Path: target.CachedPath}
		}

		deduped := true
		if _, err := catalog.GetBlob(ctx, tx, hash); err != nil {
			if !isNotFound(err) {
				return err
			}
			deduped = false
			if err := p.writeBlob(ctx, tx, hash, plaintext, originalName); err != nil {
				return err
			}
		}

		order, err := catalog.CountNodeFiles(ctx, tx, nodeID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		nf := &catalog.NodeFile{
			Node:         nodeID,
			Blob:         hash,
			OriginalName: originalName,
			DisplayOrder: order + 1,
			AddedAt:      now,
		}
		if err := catalog.InsertNodeFile(ctx, tx, nf); err != nil {
			return err
		}
		if err := catalog.TouchNode(ctx, tx, nodeID, now); err != nil {
			return err
		}
		for _, tag := range tags {
			if err := catalog.AddTag(ctx, tx, nodeID, tag); err != nil {
				return err
			}
		}

		result = &Result{NodeID: nodeID, BlobHash: hash, Deduplicated: deduped, DisplayOrder: nf.DisplayOrder}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// writeBlob seals plaintext, writes its parts to disk, and inserts the
// catalog row. Called only when hash is not yet known to the catalog.
func (p *Pipeline) writeBlob(ctx context.Context, tx *sqlx.Tx, hash string, plaintext []byte, originalName string) error {
	sealed, err := p.Crypto.Encrypt(plaintext)
	if err != nil {
		return err
	}

	storagePath, partCount, err := p.Blobs.Write(hash, sealed, p.Partitioner)
	if err != nil {
		return err
	}

	b := &catalog.Blob{
		Hash:        hash,
		Ext:         extOf(originalName),
		SizeBytes:   int64(len(plaintext)),
		StoragePath: storagePath,
		PartCount:   partCount,
	}
	return catalog.InsertBlob(ctx, tx, b)
}

func extOf(name string) string {
	e := filepath.Ext(name)
	return strings.ToLower(strings.TrimPrefix(e, "."))
}

func isNotFound(err error) bool {
	_, ok := err.(*archiveerr.NotFoundError)
	return ok
}

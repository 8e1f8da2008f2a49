package catalog

import (
	"context"
	"database/sql"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

// InsertBlob records a newly written blob's metadata row.
func InsertBlob(ctx context.Context, ext Ext, b *Blob) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO blobs (hash, ext, size_bytes, storage_path, part_count)
		VALUES (:hash, :ext, :size_bytes, :storage_path, :part_count)
	`, b)
	if err != nil {
		return &archiveerr.IOError{Op: "insert blob", Err: err}
	}
	return nil
}

// GetBlob looks up a blob by its plaintext SHA-256 hash.
func GetBlob(ctx context.Context, ext Ext, hash string) (*Blob, error) {
	var b Blob
	err := sqlx.GetContext(ctx, ext, &b, `SELECT * FROM blobs WHERE hash = ?`, hash)
	if err == sql.ErrNoRows {
		return nil, &archiveerr.NotFoundError{Kind: "blob", What: hash}
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "get blob", Err: err}
	}
	return &b, nil
}

// UpdateBlobPartCount rewrites a blob's storage_path/part_count after a
// C7 re-encryption or re-partitioning pass.
func UpdateBlobPartCount(ctx context.Context, ext Ext, hash, storagePath string, partCount int, sizeBytes int64) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE blobs SET storage_path = ?, part_count = ?, size_bytes = ? WHERE hash = ?
	`, storagePath, partCount, sizeBytes, hash)
	if err != nil {
		return &archiveerr.IOError{Op: "update blob", Err: err}
	}
	return nil
}

// ListAllBlobs returns every blob row, ordered by hash for a stable C7
// conversion order (spec.md §4.7: "walks every blob in a stable order").
func ListAllBlobs(ctx context.Context, ext Ext) ([]Blob, error) {
	var blobs []Blob
	err := sqlx.SelectContext(ctx, ext, &blobs, `SELECT * FROM blobs ORDER BY hash`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list blobs", Err: err}
	}
	return blobs, nil
}

package catalog

import (
	"context"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

// CountNodeFiles returns the number of file-links already attached to
// node, used to compute the next append-only display_order.
func CountNodeFiles(ctx context.Context, ext Ext, node string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, ext, &count, `SELECT COUNT(*) FROM node_files WHERE node = ?`, node)
	if err != nil {
		return 0, &archiveerr.IOError{Op: "count node files", Err: err}
	}
	return count, nil
}

// InsertNodeFile creates a new file-link row.
func InsertNodeFile(ctx context.Context, ext Ext, f *NodeFile) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO node_files (node, blob, original_name, display_order, added_at)
		VALUES (:node, :blob, :original_name, :display_order, :added_at)
	`, f)
	if err != nil {
		return &archiveerr.IOError{Op: "insert node file", Err: err}
	}
	return nil
}

// ListNodeFiles returns a node's file-links in display order.
func ListNodeFiles(ctx context.Context, ext Ext, node string) ([]NodeFile, error) {
	var files []NodeFile
	err := sqlx.SelectContext(ctx, ext, &files, `
		SELECT * FROM node_files WHERE node = ? ORDER BY display_order
	`, node)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list node files", Err: err}
	}
	return files, nil
}

// CountFilesAndSize aggregates a node's file count and total blob size,
// used to enrich query results (spec.md §4.8 executor contract).
func CountFilesAndSize(ctx context.Context, ext Ext, node string) (count int, totalSize int64, err error) {
	row := struct {
		Count int   `db:"count"`
		Total int64 `db:"total"`
	}{}
	sqlErr := sqlx.GetContext(ctx, ext, &row, `
		SELECT COUNT(nf.id) AS count, COALESCE(SUM(b.size_bytes), 0) AS total
		FROM node_files nf JOIN blobs b ON b.hash = nf.blob
		WHERE nf.node = ?
	`, node)
	if sqlErr != nil {
		return 0, 0, &archiveerr.IOError{Op: "aggregate node files", Err: sqlErr}
	}
	return row.Count, row.Total, nil
}

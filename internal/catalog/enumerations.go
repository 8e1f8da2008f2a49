package catalog

import (
	"context"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

// ListMetadataKeys returns the union of top-level keys appearing in any
// stored node's metadata document, via SQLite's json_each table-valued
// function (spec.md §9: "native JSON1 if using SQLite").
func ListMetadataKeys(ctx context.Context, ext Ext) ([]string, error) {
	var keys []string
	err := sqlx.SelectContext(ctx, ext, &keys, `
		SELECT DISTINCT je.key
		FROM nodes, json_each(nodes.metadata) je
		ORDER BY je.key
	`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list metadata keys", Err: err}
	}
	return keys, nil
}

// ListExtensions returns every distinct non-empty blob extension.
func ListExtensions(ctx context.Context, ext Ext) ([]string, error) {
	var exts []string
	err := sqlx.SelectContext(ctx, ext, &exts, `
		SELECT DISTINCT ext FROM blobs WHERE ext != '' ORDER BY ext
	`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list extensions", Err: err}
	}
	return exts, nil
}

// ListPaths returns up to limit cached_path values, for path
// autocompletion.
func ListPaths(ctx context.Context, ext Ext, limit int) ([]string, error) {
	var paths []string
	err := sqlx.SelectContext(ctx, ext, &paths, `
		SELECT cached_path FROM nodes ORDER BY cached_path LIMIT ?
	`, limit)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list paths", Err: err}
	}
	return paths, nil
}

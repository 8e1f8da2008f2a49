package catalog

import (
	"context"
	"strings"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

// AddTag attaches a lowercased tag to node. Re-adding an existing tag
// is a no-op (spec.md §3 Tag: unique pair).
func AddTag(ctx context.Context, ext Ext, node, tag string) error {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return &archiveerr.ValidationError{Field: "tag", Reason: "must not be empty"}
	}
	_, err := ext.ExecContext(ctx, `
		INSERT INTO tags (node, tag) VALUES (?, ?) ON CONFLICT (node, tag) DO NOTHING
	`, node, tag)
	if err != nil {
		return &archiveerr.IOError{Op: "add tag", Err: err}
	}
	return nil
}

// RemoveTag detaches a tag from node.
func RemoveTag(ctx context.Context, ext Ext, node, tag string) error {
	_, err := ext.ExecContext(ctx, `DELETE FROM tags WHERE node = ? AND tag = ?`, node, strings.ToLower(tag))
	if err != nil {
		return &archiveerr.IOError{Op: "remove tag", Err: err}
	}
	return nil
}

// ListTagsForNode returns every tag attached to node.
func ListTagsForNode(ctx context.Context, ext Ext, node string) ([]string, error) {
	var tags []string
	err := sqlx.SelectContext(ctx, ext, &tags, `SELECT tag FROM tags WHERE node = ? ORDER BY tag`, node)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list tags", Err: err}
	}
	return tags, nil
}

// ListAllTags returns every distinct tag in the catalog, for
// autocomplete suggestions.
func ListAllTags(ctx context.Context, ext Ext) ([]string, error) {
	var tags []string
	err := sqlx.SelectContext(ctx, ext, &tags, `SELECT DISTINCT tag FROM tags ORDER BY tag`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list all tags", Err: err}
	}
	return tags, nil
}

package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

// Ext is satisfied by both *sqlx.DB and *sqlx.Tx, letting every query
// helper run either standalone or inside a WithTx transaction.
type Ext = sqlx.ExtContext

// InsertNode creates a new node row. Callers are responsible for
// uniqueness of cached_path (enforced at the SQL layer too) and for
// serializing metadata via MarshalMetadata first.
func InsertNode(ctx context.Context, ext Ext, n *Node) error {
	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO nodes (id, parent, type, name, cached_path, metadata, created_at, last_modified)
		VALUES (:id, :parent, :type, :name, :cached_path, :metadata, :created_at, :last_modified)
	`, n)
	if err != nil {
		return &archiveerr.IOError{Op: "insert node", Err: err}
	}
	return nil
}

// GetNode fetches a node by id.
func GetNode(ctx context.Context, ext Ext, id string) (*Node, error) {
	var n Node
	err := sqlx.GetContext(ctx, ext, &n, `SELECT * FROM nodes WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, &archiveerr.NotFoundError{Kind: "node", What: id}
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "get node", Err: err}
	}
	return &n, nil
}

// GetNodeByPath fetches a node by its fully-joined cached_path.
func GetNodeByPath(ctx context.Context, ext Ext, path string) (*Node, error) {
	var n Node
	err := sqlx.GetContext(ctx, ext, &n, `SELECT * FROM nodes WHERE cached_path = ?`, path)
	if err == sql.ErrNoRows {
		return nil, &archiveerr.NotFoundError{Kind: "node", What: path}
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "get node by path", Err: err}
	}
	return &n, nil
}

// GetChildByName looks up a node by (parent, name); parent == nil means
// a root-level node.
func GetChildByName(ctx context.Context, ext Ext, parent *string, name string) (*Node, error) {
	var n Node
	var err error
	if parent == nil {
		err = sqlx.GetContext(ctx, ext, &n, `SELECT * FROM nodes WHERE parent IS NULL AND name = ?`, name)
	} else {
		err = sqlx.GetContext(ctx, ext, &n, `SELECT * FROM nodes WHERE parent = ? AND name = ?`, *parent, name)
	}
	if err == sql.ErrNoRows {
		return nil, &archiveerr.NotFoundError{Kind: "node", What: name}
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "get child by name", Err: err}
	}
	return &n, nil
}

// ListChildren returns all direct children of parent, ordered by name.
func ListChildren(ctx context.Context, ext Ext, parent string) ([]Node, error) {
	var nodes []Node
	err := sqlx.SelectContext(ctx, ext, &nodes, `SELECT * FROM nodes WHERE parent = ? ORDER BY name`, parent)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list children", Err: err}
	}
	return nodes, nil
}

// ListAllNodes returns every node row, ordered by cached_path, for a
// full-catalog walk (static export).
func ListAllNodes(ctx context.Context, ext Ext) ([]Node, error) {
	var nodes []Node
	err := sqlx.SelectContext(ctx, ext, &nodes, `SELECT * FROM nodes ORDER BY cached_path`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list all nodes", Err: err}
	}
	return nodes, nil
}

// CountChildren returns the number of direct children of parent, used
// to enrich query results with a Vault's child count (spec.md §4.8).
func CountChildren(ctx context.Context, ext Ext, parent string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, ext, &count, `SELECT COUNT(*) FROM nodes WHERE parent = ?`, parent)
	if err != nil {
		return 0, &archiveerr.IOError{Op: "count children", Err: err}
	}
	return count, nil
}

// TouchNode bumps a node's last_modified timestamp.
func TouchNode(ctx context.Context, ext Ext, id string, when time.Time) error {
	_, err := ext.ExecContext(ctx, `UPDATE nodes SET last_modified = ? WHERE id = ?`, when, id)
	if err != nil {
		return &archiveerr.IOError{Op: "touch node", Err: err}
	}
	return nil
}

// DeleteNode removes a node. ON DELETE CASCADE on nodes.parent, edges,
// node_files, and tags handles the recursive fan-out required by
// spec.md §3 Node invariant (e): descendants, file-links, tags and
// edges touching the subtree are all removed as part of the same
// statement's cascade.
func DeleteNode(ctx context.Context, ext Ext, id string) error {
	res, err := ext.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return &archiveerr.IOError{Op: "delete node", Err: err}
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &archiveerr.NotFoundError{Kind: "node", What: id}
	}
	return nil
}

package catalog

import (
	"context"
	"regexp"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/jmoiron/sqlx"
)

var relationPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ValidateRelation enforces spec.md §3's "uppercase ASCII identifier"
// contract for Edge.relation.
func ValidateRelation(relation string) error {
	if !relationPattern.MatchString(relation) {
		return &archiveerr.ValidationError{Field: "relation", Reason: "must be an uppercase ASCII identifier"}
	}
	return nil
}

// UpsertEdge inserts (source, target, relation) or, if it already
// exists, overwrites created_at (spec.md §3 Edge: "re-inserting
// overwrites created_at").
func UpsertEdge(ctx context.Context, ext Ext, e *Edge) error {
	if err := ValidateRelation(e.Relation); err != nil {
		return err
	}
	_, err := sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO edges (source, target, relation, created_at)
		VALUES (:source, :target, :relation, :created_at)
		ON CONFLICT (source, target, relation) DO UPDATE SET created_at = excluded.created_at
	`, e)
	if err != nil {
		return &archiveerr.IOError{Op: "upsert edge", Err: err}
	}
	return nil
}

// DeleteEdge removes a specific (source, target, relation) triple.
func DeleteEdge(ctx context.Context, ext Ext, source, target, relation string) error {
	_, err := ext.ExecContext(ctx, `
		DELETE FROM edges WHERE source = ? AND target = ? AND relation = ?
	`, source, target, relation)
	if err != nil {
		return &archiveerr.IOError{Op: "delete edge", Err: err}
	}
	return nil
}

// EdgesFrom returns outgoing edges from node, optionally filtered by
// relation (empty string means any relation).
func EdgesFrom(ctx context.Context, ext Ext, node, relation string) ([]Edge, error) {
	var edges []Edge
	var err error
	if relation == "" {
		err = sqlx.SelectContext(ctx, ext, &edges, `SELECT * FROM edges WHERE source = ?`, node)
	} else {
		err = sqlx.SelectContext(ctx, ext, &edges, `SELECT * FROM edges WHERE source = ? AND relation = ?`, node, relation)
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list outgoing edges", Err: err}
	}
	return edges, nil
}

// EdgesTo returns incoming edges to node, optionally filtered by
// relation.
func EdgesTo(ctx context.Context, ext Ext, node, relation string) ([]Edge, error) {
	var edges []Edge
	var err error
	if relation == "" {
		err = sqlx.SelectContext(ctx, ext, &edges, `SELECT * FROM edges WHERE target = ?`, node)
	} else {
		err = sqlx.SelectContext(ctx, ext, &edges, `SELECT * FROM edges WHERE target = ? AND relation = ?`, node, relation)
	}
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list incoming edges", Err: err}
	}
	return edges, nil
}

// ListRelationTypes returns every distinct relation in use, for
// autocomplete suggestions.
func ListRelationTypes(ctx context.Context, ext Ext) ([]string, error) {
	var relations []string
	err := sqlx.SelectContext(ctx, ext, &relations, `SELECT DISTINCT relation FROM edges ORDER BY relation`)
	if err != nil {
		return nil, &archiveerr.IOError{Op: "list relation types", Err: err}
	}
	return relations, nil
}

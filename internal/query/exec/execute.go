package exec

import (
	"context"
	"fmt"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/query/parser"
	"github.com/jmoiron/sqlx"
)

// Match is one query result: the node plus the per-row enrichment
// spec.md §4.8's executor contract requires (tag list, file count,
// total size, child count, parent reference).
type Match struct {
	Node       catalog.Node
	Tags       []string
	FileCount  int
	TotalSize  int64
	ChildCount int
	Parent     *catalog.Node
}

var sortColumns = map[string]string{
	"name":     "n.name",
	"path":     "n.cached_path",
	"created":  "n.created_at",
	"modified": "n.last_modified",
}

// Run parses, compiles, and executes src against ext, returning the
// enriched, sorted, paged result set. A parse failure returns
// *archiveerr.ParseError; execution never fails on an unresolved !path
// target — compileAtom already reduces that to a false predicate.
func Run(ctx context.Context, ext catalog.Ext, src string) ([]Match, error) {
	q, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	return RunQuery(ctx, ext, q)
}

// RunQuery executes an already-parsed AST, for callers (e.g.
// autocomplete previews) that build or rewrite a Query programmatically.
func RunQuery(ctx context.Context, ext catalog.Ext, q *parser.Query) ([]Match, error) {
	where, args, opts, err := Compile(ctx, ext, q)
	if err != nil {
		return nil, err
	}

	col, ok := sortColumns[opts.SortField]
	if !ok {
		col = sortColumns["path"]
	}
	dir := "ASC"
	if opts.SortDescending {
		dir = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	sqlStr := fmt.Sprintf(
		"SELECT DISTINCT n.* FROM nodes n WHERE %s ORDER BY %s %s, n.cached_path ASC LIMIT ?",
		where, col, dir,
	)
	args = append(args, limit)

	var nodes []catalog.Node
	if err := sqlx.SelectContext(ctx, ext, &nodes, sqlStr, args...); err != nil {
		return nil, &archiveerr.IOError{Op: "execute query", Err: err}
	}

	matches := make([]Match, 0, len(nodes))
	for _, n := range nodes {
		m, err := enrich(ctx, ext, n)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, nil
}

func enrich(ctx context.Context, ext catalog.Ext, n catalog.Node) (*Match, error) {
	tags, err := catalog.ListTagsForNode(ctx, ext, n.ID)
	if err != nil {
		return nil, err
	}
	fileCount, totalSize, err := catalog.CountFilesAndSize(ctx, ext, n.ID)
	if err != nil {
		return nil, err
	}

	m := &Match{Node: n, Tags: tags, FileCount: fileCount, TotalSize: totalSize}

	if n.Type == catalog.Vault {
		childCount, err := catalog.CountChildren(ctx, ext, n.ID)
		if err != nil {
			return nil, err
		}
		m.ChildCount = childCount
	}

	if n.Parent != nil {
		parent, err := catalog.GetNode(ctx, ext, *n.Parent)
		if err != nil {
			return nil, err
		}
		m.Parent = parent
	}

	return m, nil
}

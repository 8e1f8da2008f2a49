// Package exec compiles a query AST (internal/query/parser) into a
// single parameterized SQL predicate against internal/catalog and
// executes it, enriching each returned node the way spec.md §4.8's
// executor contract requires. Grounded on
// repository/files/file_repository.go's inline-query-string +
// placeholder style, generalized from fixed queries to an AST-driven
// compiler.
package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/query/parser"
)

// Options collects the non-predicate atoms (sort/limit/preview) that
// configure the executor rather than filter rows.
type Options struct {
	SortField      string
	SortDescending bool
	Limit          int
	Preview        string
}

// DefaultLimit caps result count when no limit: term is present
// (spec.md §4.8: "an implementation maximum, e.g. 1000").
const DefaultLimit = 1000

func defaultOptions() *Options {
	return &Options{SortField: "path", Limit: DefaultLimit}
}

// compiler threads a fresh-alias counter through compilation so nested
// deep/reverse-deep subqueries never collide on alias names.
type compiler struct {
	ctx      context.Context
	ext      catalog.Ext
	aliasSeq int
	opts     *Options
}

func (c *compiler) nextAlias() string {
	c.aliasSeq++
	return fmt.Sprintf("q%d", c.aliasSeq)
}

// Compile turns q into a WHERE-clause fragment (without the leading
// "WHERE"), its bound arguments, and the collected sort/limit/preview
// options. An empty query compiles to "1=1" (spec.md §4.8: "An empty
// query is treated as all nodes").
func Compile(ctx context.Context, ext catalog.Ext, q *parser.Query) (where string, args []interface{}, opts *Options, err error) {
	c := &compiler{ctx: ctx, ext: ext, opts: defaultOptions()}
	frag, args, err := c.compileQuery(q, "n")
	if err != nil {
		return "", nil, nil, err
	}
	if frag == "" {
		frag = "1=1"
	}
	return frag, args, c.opts, nil
}

func (c *compiler) compileQuery(q *parser.Query, alias string) (string, []interface{}, error) {
	if len(q.Groups) == 0 {
		return "", nil, nil
	}
	var parts []string
	var args []interface{}
	for _, g := range q.Groups {
		frag, a, err := c.compileOrGroup(g, alias)
		if err != nil {
			return "", nil, err
		}
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
		args = append(args, a...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return strings.Join(parts, " AND "), args, nil
}

func (c *compiler) compileOrGroup(g *parser.OrGroup, alias string) (string, []interface{}, error) {
	var parts []string
	var args []interface{}
	for _, t := range g.Terms {
		frag, a, err := c.compileTerm(t, alias)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, frag)
		args = append(args, a...)
	}
	if len(parts) == 1 {
		return parts[0], args, nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args, nil
}

func (c *compiler) compileTerm(t *parser.Term, alias string) (string, []interface{}, error) {
	var frag string
	var args []interface{}
	var err error

	if t.Group != nil {
		frag, args, err = c.compileQuery(t.Group, alias)
		if err != nil {
			return "", nil, err
		}
		if frag == "" {
			frag = "1=1"
		}
	} else {
		frag, args, err = c.compileAtom(t.Atom, alias)
		if err != nil {
			return "", nil, err
		}
	}

	// Deep (^) inherits a matching ancestor's term downward: a node
	// satisfies it if the term holds on itself OR on any ancestor (so a
	// Vault's metadata/tag reaches every node nested under it).
	if t.Deep {
		sub := c.nextAlias()
		frag = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM nodes %s WHERE (%s.cached_path = %s.cached_path OR %s.cached_path LIKE (%s.cached_path || '/%%')) AND %s)",
			sub, alias, sub, alias, sub, rebind(frag, alias, sub),
		)
	}
	// ReverseDeep (%) is the mirror: self OR any descendant satisfies
	// the term, pulling a nested match back up to its ancestors.
	if t.ReverseDeep {
		sub := c.nextAlias()
		frag = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM nodes %s WHERE (%s.cached_path = %s.cached_path OR %s.cached_path LIKE (%s.cached_path || '/%%')) AND %s)",
			sub, sub, alias, sub, alias, rebind(frag, alias, sub),
		)
	}
	if t.Negate {
		frag = "NOT (" + frag + ")"
	}
	return frag, args, nil
}

// rebind rewrites a compiled fragment's references from oldAlias to
// newAlias. Atom compilation always qualifies columns with the alias
// passed in, so a deep/reverse-deep wrapper simply needs the inner
// fragment recompiled against the subquery's alias; rebind exists as a
// cheap textual substitution rather than threading two aliases through
// every atom compiler.
func rebind(frag, oldAlias, newAlias string) string {
	return strings.ReplaceAll(frag, oldAlias+".", newAlias+".")
}

package exec

import (
	"fmt"
	"strings"

	"github.com/dlfi/archive/internal/query/parser"
)

// compileAtom turns one leaf atom into a boolean SQL fragment qualified
// against the "nodes" row aliased as alias, plus its bound arguments.
// Relational/aggregate atoms compile to correlated EXISTS/subquery
// fragments rather than JOINs, so the predicate composes cleanly under
// AND/OR/NOT without the row-multiplication or NULL-propagation hazards
// a LEFT JOIN would introduce at this nesting depth.
func (c *compiler) compileAtom(a parser.Atom, alias string) (string, []interface{}, error) {
	switch v := a.(type) {
	case parser.MetadataContains:
		return fmt.Sprintf("LOWER(CAST(json_extract(%s.metadata, '$.' || ?) AS TEXT)) LIKE LOWER(?)", alias),
			[]interface{}{jsonPath(v.Key), "%" + v.Value + "%"}, nil

	case parser.MetadataEquals:
		return fmt.Sprintf("LOWER(CAST(json_extract(%s.metadata, '$.' || ?) AS TEXT)) = LOWER(?)", alias),
			[]interface{}{jsonPath(v.Key), v.Value}, nil

	case parser.MetadataCompare:
		return fmt.Sprintf("CAST(json_extract(%s.metadata, '$.' || ?) AS REAL) %s ?", alias, v.Op),
			[]interface{}{jsonPath(v.Key), v.Value}, nil

	case parser.MetadataRange:
		return fmt.Sprintf("CAST(json_extract(%s.metadata, '$.' || ?) AS REAL) BETWEEN ? AND ?", alias),
			[]interface{}{jsonPath(v.Key), v.Low, v.High}, nil

	case parser.KeyExists:
		return fmt.Sprintf("json_extract(%s.metadata, '$.' || ?) IS NOT NULL", alias),
			[]interface{}{jsonPath(v.Key)}, nil

	case parser.KeyAbsent:
		return fmt.Sprintf("json_extract(%s.metadata, '$.' || ?) IS NULL", alias),
			[]interface{}{jsonPath(v.Key)}, nil

	case parser.RelationAtom:
		return c.compileRelation(v, alias)

	case parser.RelationTypeAtom:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM edges re WHERE (re.source = %s.id OR re.target = %s.id) AND re.relation = ?)",
			alias, alias,
		), []interface{}{v.Relation}, nil

	case parser.PhraseAtom:
		return c.compileGlobalSearch(alias, v.Text, false), []interface{}{
			v.Text, v.Text, v.Text, v.Text, v.Text,
		}, nil

	case parser.WordAtom:
		like := "%" + v.Text + "%"
		return c.compileGlobalSearch(alias, like, true), []interface{}{
			like, like, like, like, like,
		}, nil

	case parser.TagAtom:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tags tg WHERE tg.node = %s.id AND tg.tag LIKE LOWER(?))", alias,
		), []interface{}{"%" + strings.ToLower(v.Value) + "%"}, nil

	case parser.InsideAtom:
		if v.Path == "" {
			return "1=1", nil, nil
		}
		return fmt.Sprintf("%s.cached_path LIKE ?", alias), []interface{}{v.Path + "/%"}, nil

	case parser.PathAtom:
		if strings.Contains(v.Pattern, "**") {
			return fmt.Sprintf("%s.cached_path GLOB ?", alias), []interface{}{pathGlob(v.Pattern)}, nil
		}
		return fmt.Sprintf(
			"(%s.cached_path GLOB ? AND LENGTH(%s.cached_path) - LENGTH(REPLACE(%s.cached_path, '/', '')) = ?)",
			alias, alias, alias,
		), []interface{}{pathGlob(v.Pattern), strings.Count(v.Pattern, "/")}, nil

	case parser.ExtAtom:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM node_files enf JOIN blobs eb ON eb.hash = enf.blob WHERE enf.node = %s.id AND eb.ext = ?)",
			alias,
		), []interface{}{strings.ToLower(v.Value)}, nil

	case parser.FilesAtom:
		return fmt.Sprintf(
			"(SELECT COUNT(*) FROM node_files fnf WHERE fnf.node = %s.id) %s ?", alias, v.Op,
		), []interface{}{v.Value}, nil

	case parser.SizeAtom:
		return fmt.Sprintf(
			"(SELECT COALESCE(SUM(sb.size_bytes), 0) FROM node_files snf JOIN blobs sb ON sb.hash = snf.blob WHERE snf.node = %s.id) %s ?",
			alias, v.Op,
		), []interface{}{v.Bytes}, nil

	case parser.SizeRangeAtom:
		return fmt.Sprintf(
			"(SELECT COALESCE(SUM(sb.size_bytes), 0) FROM node_files snf JOIN blobs sb ON sb.hash = snf.blob WHERE snf.node = %s.id) BETWEEN ? AND ?",
			alias,
		), []interface{}{v.Low, v.High}, nil

	case parser.TypeAtom:
		return fmt.Sprintf("%s.type = ?", alias), []interface{}{v.NodeType}, nil

	case parser.SortAtom:
		c.opts.SortField = strings.ToLower(v.Field)
		c.opts.SortDescending = v.Descending
		return "1=1", nil, nil

	case parser.LimitAtom:
		if v.N > 0 && v.N < c.opts.Limit {
			c.opts.Limit = v.N
		}
		return "1=1", nil, nil

	case parser.PreviewAtom:
		c.opts.Preview = v.Value
		return "1=1", nil, nil

	default:
		return "1=1", nil, nil
	}
}

// compileRelation compiles !path / !path:REL / !path:REL> / !path:REL<.
// A path that resolves to no node makes the EXISTS subquery vacuously
// false rather than requiring a separate "unsatisfiable" sentinel
// (spec.md §4.8: unresolved !path targets degrade to an empty result).
func (c *compiler) compileRelation(v parser.RelationAtom, alias string) (string, []interface{}, error) {
	args := []interface{}{v.Path}
	relClause := ""
	if v.Relation != "" {
		relClause = " AND re.relation = ?"
		args = append(args, v.Relation)
	}

	switch v.Direction {
	case parser.Outgoing:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM edges re JOIN nodes rother ON rother.id = re.target WHERE re.source = %s.id AND rother.cached_path = ?%s)",
			alias, relClause,
		), args, nil
	case parser.Incoming:
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM edges re JOIN nodes rother ON rother.id = re.source WHERE re.target = %s.id AND rother.cached_path = ?%s)",
			alias, relClause,
		), args, nil
	default:
		return fmt.Sprintf(
			`EXISTS (
				SELECT 1 FROM edges re, nodes rother
				WHERE ((re.source = %s.id AND re.target = rother.id) OR (re.target = %s.id AND re.source = rother.id))
				AND rother.cached_path = ?%s
			)`,
			alias, alias, relClause,
		), args, nil
	}
}

// compileGlobalSearch matches name, cached_path, any tag, any
// file-link's original_name, or any top-level metadata scalar value.
// like selects contains (LIKE) vs. exact (=) comparison.
func (c *compiler) compileGlobalSearch(alias, _ string, like bool) string {
	cmp := "="
	if like {
		cmp = "LIKE"
	}
	return fmt.Sprintf(`(
		%s.name %s ?
		OR %s.cached_path %s ?
		OR EXISTS (SELECT 1 FROM tags gtg WHERE gtg.node = %s.id AND gtg.tag %s ?)
		OR EXISTS (SELECT 1 FROM node_files gnf WHERE gnf.node = %s.id AND gnf.original_name %s ?)
		OR EXISTS (
			SELECT 1 FROM json_each(%s.metadata) gje
			WHERE CAST(gje.value AS TEXT) %s ?
		)
	)`, alias, cmp, alias, cmp, alias, cmp, alias, cmp, alias, cmp)
}

// jsonPath converts a spec.md §4.8 dotted metadata key ("a.b") into the
// "a.b" suffix appended after "$." by the caller's json_extract call.
func jsonPath(key string) string {
	return key
}

// pathGlob translates a path:pattern atom's '*'/'**' wildcards into a
// SQLite GLOB pattern (spec.md §4.8): both become GLOB's '*', which also
// matches '/'. For a pattern without '**', compileAtom keeps each '*'
// within one segment by also requiring the path to have as many '/' as
// the pattern; a pattern with '**' gets no such check, so a single '*'
// in it can match across segments too.
func pathGlob(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString("*")
				i++
				continue
			}
			b.WriteString("*")
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}

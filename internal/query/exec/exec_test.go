package exec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/pathresolver"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c, err := catalog.Open(filepath.Join(t.TempDir(), "db.sqlite"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func paths(matches []Match) []string {
	var out []string
	for _, m := range matches {
		out = append(out, m.Node.CachedPath)
	}
	return out
}

func TestRunDeepModifierInheritsFromAncestor(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	a, err := pathresolver.Resolve(ctx, c, "art/a", true, catalog.Record, catalog.Metadata{"year": 2020})
	require.NoError(t, err)
	b, err := pathresolver.Resolve(ctx, c, "art/b", true, catalog.Record, catalog.Metadata{"year": 2024})
	require.NoError(t, err)
	leaf, err := pathresolver.Resolve(ctx, c, "art/b/c", true, catalog.Record, nil)
	require.NoError(t, err)

	require.NoError(t, catalog.AddTag(ctx, db, a.ID, "red"))
	require.NoError(t, catalog.AddTag(ctx, db, b.ID, "blue"))
	require.NoError(t, catalog.AddTag(ctx, db, leaf.ID, "red"))

	matches, err := Run(ctx, db, "tag:red ^year>=2020")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"art/a", "art/b/c"}, paths(matches))
}

func TestRunReverseDeepPullsDescendantMatchUpward(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	_, err := pathresolver.Resolve(ctx, c, "art", true, catalog.Vault, nil)
	require.NoError(t, err)
	child, err := pathresolver.Resolve(ctx, c, "art/child", true, catalog.Record, catalog.Metadata{"year": 2020})
	require.NoError(t, err)
	require.NotNil(t, child)

	matches, err := Run(ctx, db, "%year>=2020")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"art", "art/child"}, paths(matches))
}

func TestRunRelationAtomDirections(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	a, err := pathresolver.Resolve(ctx, c, "art/a", true, catalog.Record, nil)
	require.NoError(t, err)
	b, err := pathresolver.Resolve(ctx, c, "art/b", true, catalog.Record, nil)
	require.NoError(t, err)

	require.NoError(t, catalog.UpsertEdge(ctx, db, &catalog.Edge{
		Source: b.ID, Target: a.ID, Relation: "LIKES", CreatedAt: time.Now().UTC(),
	}))

	matches, err := Run(ctx, db, "!art/a:LIKES>")
	require.NoError(t, err)
	assert.Equal(t, []string{"art/b"}, paths(matches))

	matches, err = Run(ctx, db, "!art/b:LIKES<")
	require.NoError(t, err)
	assert.Equal(t, []string{"art/a"}, paths(matches))

	matches, err = Run(ctx, db, "!does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, matches, "an unresolved relation target degrades to no matches rather than an error")
}

func TestRunPathWildcards(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	_, err := pathresolver.Resolve(ctx, c, "art/a", true, catalog.Record, nil)
	require.NoError(t, err)
	_, err = pathresolver.Resolve(ctx, c, "art/b/c", true, catalog.Record, nil)
	require.NoError(t, err)

	matches, err := Run(ctx, db, "path:art/*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"art/a", "art/b"}, paths(matches), "single '*' must stay within one path segment")

	matches, err = Run(ctx, db, "path:art/**")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"art/a", "art/b", "art/b/c"}, paths(matches), "'**' matches any depth")
}

func TestRunTypeAndFilesFilter(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	_, err := pathresolver.Resolve(ctx, c, "vault", true, catalog.Vault, nil)
	require.NoError(t, err)
	_, err = pathresolver.Resolve(ctx, c, "vault/leaf", true, catalog.Record, nil)
	require.NoError(t, err)

	matches, err := Run(ctx, db, "type:VAULT")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, catalog.Vault, matches[0].Node.Type)

	matches, err = Run(ctx, db, "type:VAULT files>0")
	require.NoError(t, err)
	assert.Empty(t, matches, "a Vault never has direct file links")
}

func TestRunSortAndLimitAreOptionsNotFilters(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	_, err := pathresolver.Resolve(ctx, c, "b", true, catalog.Record, nil)
	require.NoError(t, err)
	_, err = pathresolver.Resolve(ctx, c, "a", true, catalog.Record, nil)
	require.NoError(t, err)

	matches, err := Run(ctx, db, "sort:-path")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, paths(matches))

	matches, err = Run(ctx, db, "limit:1")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRunEmptyQueryMatchesEverything(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := pathresolver.Resolve(ctx, c, "a", true, catalog.Record, nil)
	require.NoError(t, err)
	_, err = pathresolver.Resolve(ctx, c, "b", true, catalog.Record, nil)
	require.NoError(t, err)

	matches, err := Run(ctx, c.DB(), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, paths(matches))
}

func TestRunInvalidQueryReturnsParseError(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	_, err := Run(ctx, c.DB(), "(tag:red")
	assert.Error(t, err)
}

func TestEnrichReportsChildCountAndParent(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	db := c.DB()

	_, err := pathresolver.Resolve(ctx, c, "vault", true, catalog.Vault, nil)
	require.NoError(t, err)
	_, err = pathresolver.Resolve(ctx, c, "vault/leaf", true, catalog.Record, nil)
	require.NoError(t, err)

	matches, err := Run(ctx, db, "type:VAULT")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 1, matches[0].ChildCount)

	matches, err = Run(ctx, db, "type:RECORD")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NotNil(t, matches[0].Parent)
	assert.Equal(t, "vault", matches[0].Parent.CachedPath)
}

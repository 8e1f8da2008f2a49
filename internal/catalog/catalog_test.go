package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c, err := Open(filepath.Join(t.TempDir(), "db.sqlite"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestInsertAndGetNode(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id := uuid.NewString()
	n := &Node{ID: id, Parent: nil, Type: Vault, Name: "root", CachedPath: "root", MetadataJSON: "{}", CreatedAt: now, LastModified: now}

	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		return InsertNode(ctx, tx, n)
	}))

	got, err := GetNode(ctx, c.DB(), id)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Name)
	assert.Equal(t, Vault, got.Type)
}

func TestUniqueCachedPath(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	n1 := &Node{ID: uuid.NewString(), Type: Vault, Name: "root", CachedPath: "root", MetadataJSON: "{}", CreatedAt: now, LastModified: now}
	n2 := &Node{ID: uuid.NewString(), Type: Vault, Name: "root", CachedPath: "root", MetadataJSON: "{}", CreatedAt: now, LastModified: now}

	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error { return InsertNode(ctx, tx, n1) }))
	err := c.WithTx(ctx, func(tx *sqlx.Tx) error { return InsertNode(ctx, tx, n2) })
	assert.Error(t, err)
}

func TestDeleteNodeCascades(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	root := uuid.NewString()
	child := uuid.NewString()
	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := InsertNode(ctx, tx, &Node{ID: root, Type: Vault, Name: "root", CachedPath: "root", MetadataJSON: "{}", CreatedAt: now, LastModified: now}); err != nil {
			return err
		}
		parent := root
		if err := InsertNode(ctx, tx, &Node{ID: child, Parent: &parent, Type: Record, Name: "child", CachedPath: "root/child", MetadataJSON: "{}", CreatedAt: now, LastModified: now}); err != nil {
			return err
		}
		return AddTag(ctx, tx, child, "red")
	}))

	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		return DeleteNode(ctx, tx, root)
	}))

	_, err := GetNode(ctx, c.DB(), child)
	assert.Error(t, err)

	tags, err := ListTagsForNode(ctx, c.DB(), child)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestMetadataValidationRejectsUnsupportedValues(t *testing.T) {
	m := Metadata{"year": 2020.0, "nested": map[string]interface{}{"ok": "yes"}}
	assert.NoError(t, ValidateMetadata(m))

	bad := Metadata{"bad": make(chan int)}
	assert.Error(t, ValidateMetadata(bad))
}

func TestEdgeUpsertOverwritesCreatedAt(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a, b := uuid.NewString(), uuid.NewString()
	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := InsertNode(ctx, tx, &Node{ID: a, Type: Vault, Name: "a", CachedPath: "a", MetadataJSON: "{}", CreatedAt: now, LastModified: now}); err != nil {
			return err
		}
		if err := InsertNode(ctx, tx, &Node{ID: b, Type: Vault, Name: "b", CachedPath: "b", MetadataJSON: "{}", CreatedAt: now, LastModified: now}); err != nil {
			return err
		}
		return UpsertEdge(ctx, tx, &Edge{Source: a, Target: b, Relation: "LIKES", CreatedAt: now})
	}))

	later := now.Add(time.Hour)
	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		return UpsertEdge(ctx, tx, &Edge{Source: a, Target: b, Relation: "LIKES", CreatedAt: later})
	}))

	edges, err := EdgesFrom(ctx, c.DB(), a, "")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.WithinDuration(t, later, edges[0].CreatedAt, time.Second)
}

func TestGenerationBumpsOnWrite(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	before := c.Generation()

	now := time.Now().UTC()
	require.NoError(t, c.WithTx(ctx, func(tx *sqlx.Tx) error {
		return InsertNode(ctx, tx, &Node{ID: uuid.NewString(), Type: Vault, Name: "root", CachedPath: "root", MetadataJSON: "{}", CreatedAt: now, LastModified: now})
	}))

	assert.Equal(t, before+1, c.Generation())
}

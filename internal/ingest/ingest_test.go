package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/blobstore"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/partition"
	"github.com/dlfi/archive/internal/pathresolver"
	"github.com/dlfi/archive/internal/vaultcrypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) (*Pipeline, *catalog.Catalog) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "db.sqlite"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := blobstore.Open(filepath.Join(t.TempDir(), "blobs"), filepath.Join(t.TempDir(), "temp"), logger)
	require.NoError(t, err)

	p, err := partition.New(0)
	require.NoError(t, err)

	return &Pipeline{
		Catalog:     cat,
		Blobs:       store,
		Crypto:      vaultcrypto.Disabled(),
		Partitioner: p,
	}, cat
}

func TestIngestStreamDeduplicatesIdenticalPlaintext(t *testing.T) {
	p, cat := newPipeline(t)
	ctx := context.Background()

	node, err := pathresolver.Resolve(ctx, cat, "notes/one", true, catalog.Record, nil)
	require.NoError(t, err)

	r1, err := p.IngestStream(ctx, strings.NewReader("hello world"), node.ID, "a.txt", nil)
	require.NoError(t, err)
	assert.False(t, r1.Deduplicated)
	assert.Equal(t, 1, r1.DisplayOrder)

	r2, err := p.IngestStream(ctx, strings.NewReader("hello world"), node.ID, "b.txt", []string{"greeting"})
	require.NoError(t, err)
	assert.True(t, r2.Deduplicated)
	assert.Equal(t, 2, r2.DisplayOrder)
	assert.Equal(t, r1.BlobHash, r2.BlobHash)

	blobs, err := catalog.ListAllBlobs(ctx, cat.DB())
	require.NoError(t, err)
	assert.Len(t, blobs, 1, "identical plaintext must dedupe to a single blob row")

	files, err := catalog.ListNodeFiles(ctx, cat.DB(), node.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Less(t, files[0].DisplayOrder, files[1].DisplayOrder)

	tags, err := catalog.ListTagsForNode(ctx, cat.DB(), node.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"greeting"}, tags)
}

func TestIngestStreamRejectsVaultTarget(t *testing.T) {
	p, cat := newPipeline(t)
	ctx := context.Background()

	vault, err := pathresolver.Resolve(ctx, cat, "folder", true, catalog.Vault, nil)
	require.NoError(t, err)

	_, err = p.IngestStream(ctx, strings.NewReader("data"), vault.ID, "a.txt", nil)
	require.Error(t, err)
	var wrongType *archiveerr.WrongTypeError
	assert.ErrorAs(t, err, &wrongType)
}

func TestIngestStreamRejectsMissingNode(t *testing.T) {
	p, _ := newPipeline(t)
	ctx := context.Background()

	_, err := p.IngestStream(ctx, strings.NewReader("data"), "does-not-exist", "a.txt", nil)
	require.Error(t, err)
	var notFound *archiveerr.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestIngestFileUsesBaseNameWhenOriginalNameEmpty(t *testing.T) {
	p, cat := newPipeline(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0o600))

	node, err := pathresolver.Resolve(ctx, cat, "docs/report", true, catalog.Record, nil)
	require.NoError(t, err)

	res, err := p.IngestFile(ctx, path, node.ID, "", nil)
	require.NoError(t, err)

	files, err := catalog.ListNodeFiles(ctx, cat.DB(), node.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].OriginalName)

	blobs, err := catalog.ListAllBlobs(ctx, cat.DB())
	require.NoError(t, err)
	require.Len(t, blobs, 1)
	assert.Equal(t, "pdf", blobs[0].Ext)
	assert.Equal(t, res.BlobHash, blobs[0].Hash)
}

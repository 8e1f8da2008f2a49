// Package archive is the single entry point for an opened DLFI
// archive: it wires the catalog, blob store, crypto, partitioner,
// ingest pipeline, config manager, query executor, autocomplete
// provider, and static exporter together behind one handle (spec.md
// §9: "the opened archive is the only long-lived object ... pass the
// archive handle explicitly to every operation"). Every other package
// in this module is usable standalone; Archive is the opinionated
// wiring a caller (the out-of-scope HTTP layer, a CLI, a test) reaches
// for instead of assembling the pieces itself.
package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/archiveopts"
	"github.com/dlfi/archive/internal/autocomplete"
	"github.com/dlfi/archive/internal/blobstore"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/export"
	"github.com/dlfi/archive/internal/ingest"
	"github.com/dlfi/archive/internal/partition"
	"github.com/dlfi/archive/internal/pathresolver"
	"github.com/dlfi/archive/internal/query/exec"
	"github.com/dlfi/archive/internal/vaultconfig"
	"github.com/dlfi/archive/internal/vaultcrypto"
	"github.com/dlfi/archive/internal/vaultops"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Archive is one opened, embedded content archive (spec.md §1/§5: a
// single directory on a local filesystem, single writer, single
// process). The zero value is not usable; construct with Open.
type Archive struct {
	root   string
	logger *logrus.Logger

	catalog     *catalog.Catalog
	blobs       *blobstore.Store
	crypto      *vaultcrypto.Crypto
	config      *vaultconfig.Config
	partitioner partition.Partitioner

	pipeline     *ingest.Pipeline
	ops          *vaultops.Manager
	autocomplete *autocomplete.Provider
}

// layout returns the fixed on-disk paths under root (spec.md §6).
type layout struct {
	dlfi, db, configFile, temp, blobs string
}

func layoutFor(root string) layout {
	dlfi := filepath.Join(root, ".dlfi")
	return layout{
		dlfi:       dlfi,
		db:         filepath.Join(dlfi, "db.sqlite"),
		configFile: filepath.Join(dlfi, "config.json"),
		temp:       filepath.Join(dlfi, "temp"),
		blobs:      filepath.Join(root, "blobs"),
	}
}

// Open opens (creating if absent) the archive rooted at root. password
// is required iff the stored config says the archive is encrypted; a
// wrong password fails fast with an AuthError and no blob or manifest
// data is touched (spec.md §7: "fatal error on open — no partial state
// is exposed"). opts may be nil to use process-option defaults.
func Open(ctx context.Context, root, password string, opts *archiveopts.Options) (*Archive, error) {
	if opts == nil {
		var err error
		opts, err = archiveopts.Load("")
		if err != nil {
			return nil, err
		}
	}
	logger := opts.Logger()
	lay := layoutFor(root)

	if err := os.MkdirAll(lay.dlfi, 0o755); err != nil {
		return nil, &archiveerr.IOError{Op: "create .dlfi dir", Err: err}
	}

	cfg := vaultconfig.Load(lay.configFile)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	crypto, err := deriveCrypto(cfg, password)
	if err != nil {
		return nil, err
	}

	part, err := partition.New(cfg.PartitionSize)
	if err != nil {
		return nil, &archiveerr.ConfigError{Reason: err.Error()}
	}

	cat, err := catalog.Open(lay.db, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := blobstore.Open(lay.blobs, lay.temp, logger)
	if err != nil {
		cat.Close()
		return nil, err
	}

	a := &Archive{
		root:        root,
		logger:      logger,
		catalog:     cat,
		blobs:       blobs,
		crypto:      crypto,
		config:      cfg,
		partitioner: part,
		pipeline: &ingest.Pipeline{
			Catalog:     cat,
			Blobs:       blobs,
			Crypto:      crypto,
			Partitioner: part,
		},
		ops:          &vaultops.Manager{Catalog: cat, Blobs: blobs},
		autocomplete: autocomplete.NewProvider(cat),
	}
	return a, nil
}

// deriveCrypto restores the archive's key from password+stored salt
// and validates password against check_value before any blob is read
// (spec.md §4.1 rationale), or returns a passthrough Crypto for an
// unencrypted archive.
func deriveCrypto(cfg *vaultconfig.Config, password string) (*vaultcrypto.Crypto, error) {
	if !cfg.Encrypted {
		return vaultcrypto.Disabled(), nil
	}
	salt, err := cfg.SaltBytes()
	if err != nil {
		return nil, err
	}
	if salt == nil || cfg.CheckValue == nil {
		return nil, &archiveerr.ConfigError{Reason: "encrypted archive missing salt or check_value"}
	}
	crypto := vaultcrypto.FromSalt(password, salt)
	if err := crypto.VerifyCheckValue(*cfg.CheckValue); err != nil {
		return nil, err
	}
	return crypto, nil
}

// Close releases the catalog connection. The blob store and crypto
// hold no OS resources beyond open file handles closed per-call.
func (a *Archive) Close() error {
	return a.catalog.Close()
}

// Resolve is the path resolver entry point (spec.md §4.5), exposed
// directly since callers routinely need a node id before ingesting,
// tagging, or linking without creating a new node.
func (a *Archive) Resolve(ctx context.Context, path string, createIfMissing bool, typ catalog.NodeType, metadata catalog.Metadata) (*catalog.Node, error) {
	return pathresolver.Resolve(ctx, a.catalog, path, createIfMissing, typ, metadata)
}

// IngestFile reads the file at sourcePath and links it under the
// Record node at targetPath, which must already exist (spec.md §4.6
// step 1: "Resolve target node (must exist and be a Record)").
func (a *Archive) IngestFile(ctx context.Context, sourcePath, targetPath, originalName string, tags []string) (*ingest.Result, error) {
	node, err := a.requireRecord(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	return a.pipeline.IngestFile(ctx, sourcePath, node.ID, originalName, tags)
}

// IngestStream ingests r under the Record node at targetPath.
func (a *Archive) IngestStream(ctx context.Context, r io.Reader, targetPath, originalName string, tags []string) (*ingest.Result, error) {
	node, err := a.requireRecord(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	return a.pipeline.IngestStream(ctx, r, node.ID, originalName, tags)
}

func (a *Archive) requireRecord(ctx context.Context, targetPath string) (*catalog.Node, error) {
	node, err := pathresolver.Resolve(ctx, a.catalog, targetPath, false, "", nil)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, &archiveerr.NotFoundError{Kind: "node", What: targetPath}
	}
	if node.Type != catalog.Record {
		return nil, &archiveerr.WrongTypeError{Expected: string(catalog.Record), Actual: string(node.Type), Path: targetPath}
	}
	return node, nil
}

// ReadBlob reconstitutes and decrypts the plaintext for hash (spec.md
// §2 read path).
func (a *Archive) ReadBlob(ctx context.Context, hash string) ([]byte, error) {
	blob, err := catalog.GetBlob(ctx, a.catalog.DB(), hash)
	if err != nil {
		return nil, err
	}
	sealed, err := a.blobs.Read(hash, blob.PartCount)
	if err != nil {
		return nil, err
	}
	return a.crypto.Decrypt(sealed)
}

// Query runs a query-language string against the catalog (spec.md
// §4.8).
func (a *Archive) Query(ctx context.Context, src string) ([]exec.Match, error) {
	return exec.Run(ctx, a.catalog.DB(), src)
}

// Autocomplete returns ranked suggestions for the partial query src
// with the caret at position caret (spec.md §4.9).
func (a *Archive) Autocomplete(ctx context.Context, src string, caret int) ([]autocomplete.Suggestion, error) {
	return a.autocomplete.Suggest(ctx, src, caret)
}

// DeleteNode removes a node and, via ON DELETE CASCADE, every
// descendant, file-link, tag, and edge touching it (spec.md §3 Node
// invariant (e)).
func (a *Archive) DeleteNode(ctx context.Context, path string) error {
	node, err := pathresolver.Resolve(ctx, a.catalog, path, false, "", nil)
	if err != nil {
		return err
	}
	if node == nil {
		return &archiveerr.NotFoundError{Kind: "node", What: path}
	}
	return a.catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		return catalog.DeleteNode(ctx, tx, node.ID)
	})
}

// AddTag and RemoveTag attach or detach a tag on the node at path.
func (a *Archive) AddTag(ctx context.Context, path, tag string) error {
	node, err := a.mustResolve(ctx, path)
	if err != nil {
		return err
	}
	return a.catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		return catalog.AddTag(ctx, tx, node.ID, tag)
	})
}

func (a *Archive) RemoveTag(ctx context.Context, path, tag string) error {
	node, err := a.mustResolve(ctx, path)
	if err != nil {
		return err
	}
	return a.catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		return catalog.RemoveTag(ctx, tx, node.ID, tag)
	})
}

// Link creates or overwrites a directed edge between the nodes at
// sourcePath and targetPath (spec.md §3 Edge).
func (a *Archive) Link(ctx context.Context, sourcePath, targetPath, relation string) error {
	src, err := a.mustResolve(ctx, sourcePath)
	if err != nil {
		return err
	}
	dst, err := a.mustResolve(ctx, targetPath)
	if err != nil {
		return err
	}
	return a.catalog.WithTx(ctx, func(tx *sqlx.Tx) error {
		return catalog.UpsertEdge(ctx, tx, &catalog.Edge{Source: src.ID, Target: dst.ID, Relation: relation, CreatedAt: time.Now().UTC()})
	})
}

func (a *Archive) mustResolve(ctx context.Context, path string) (*catalog.Node, error) {
	node, err := pathresolver.Resolve(ctx, a.catalog, path, false, "", nil)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, &archiveerr.NotFoundError{Kind: "node", What: path}
	}
	return node, nil
}

// EnableEncryption turns an unencrypted archive encrypted in place
// (spec.md §4.7), re-sealing every blob under a freshly derived key.
func (a *Archive) EnableEncryption(ctx context.Context, password string) error {
	salt, checkValue, err := a.ops.EnableEncryption(ctx, password, a.partitioner)
	if err != nil {
		return err
	}
	vaultops.ApplyToConfig(a.config, salt, checkValue)
	if err := vaultconfig.Save(layoutFor(a.root).configFile, a.config); err != nil {
		return err
	}
	a.crypto = vaultcrypto.FromSalt(password, salt)
	a.pipeline.Crypto = a.crypto
	return nil
}

// DisableEncryption turns an encrypted archive plaintext in place,
// requiring the current password to have already unlocked Open.
func (a *Archive) DisableEncryption(ctx context.Context) error {
	if err := a.ops.DisableEncryption(ctx, a.crypto, a.partitioner); err != nil {
		return err
	}
	a.config.Encrypted = false
	a.config.Salt = nil
	a.config.CheckValue = nil
	if err := vaultconfig.Save(layoutFor(a.root).configFile, a.config); err != nil {
		return err
	}
	a.crypto = vaultcrypto.Disabled()
	a.pipeline.Crypto = a.crypto
	return nil
}

// ChangePassword verifies oldPassword against check_value, then
// re-seals every blob under a key derived from newPassword.
func (a *Archive) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if a.config.CheckValue == nil {
		return &archiveerr.ConfigError{Reason: "archive is not encrypted"}
	}
	salt, err := a.config.SaltBytes()
	if err != nil {
		return err
	}
	oldCrypto := vaultcrypto.FromSalt(oldPassword, salt)
	if err := oldCrypto.VerifyCheckValue(*a.config.CheckValue); err != nil {
		return err
	}

	newSalt, checkValue, err := a.ops.ChangePassword(ctx, oldCrypto, newPassword, a.partitioner)
	if err != nil {
		return err
	}
	vaultops.ApplyToConfig(a.config, newSalt, checkValue)
	if err := vaultconfig.Save(layoutFor(a.root).configFile, a.config); err != nil {
		return err
	}
	a.crypto = vaultcrypto.FromSalt(newPassword, newSalt)
	a.pipeline.Crypto = a.crypto
	return nil
}

// ChangePartitionSize re-splits every blob under a new chunk size,
// leaving encryption state untouched.
func (a *Archive) ChangePartitionSize(ctx context.Context, newSize int64) error {
	newPart, err := partition.New(newSize)
	if err != nil {
		return &archiveerr.ConfigError{Reason: err.Error()}
	}
	if err := a.ops.ChangePartitionSize(ctx, a.crypto, newPart); err != nil {
		return err
	}
	a.config.PartitionSize = newSize
	if err := vaultconfig.Save(layoutFor(a.root).configFile, a.config); err != nil {
		return err
	}
	a.partitioner = newPart
	a.pipeline.Partitioner = newPart
	return nil
}

// ExportStatic builds and writes manifest.json at the archive root
// (spec.md §4.10/§6), sealed with the archive's key if encrypted.
func (a *Archive) ExportStatic(ctx context.Context) error {
	manifest, err := export.Build(ctx, a.catalog.DB())
	if err != nil {
		return err
	}
	data, err := export.Marshal(manifest, a.crypto)
	if err != nil {
		return err
	}
	path := filepath.Join(a.root, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &archiveerr.IOError{Op: "write manifest", Err: err}
	}
	return nil
}

// Config returns a copy of the archive's current VaultConfig, for
// callers that need to display or persist it externally.
func (a *Archive) Config() vaultconfig.Config {
	return *a.config
}

// Package pathresolver implements the bijection between '/'-separated
// string paths and node identities (spec.md §4.5), grounded on
// drivers/storage/local_store.go's path-segment normalization idiom but
// resolving against catalog rows instead of the filesystem.
package pathresolver

import (
	"context"
	"strings"
	"time"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Normalize trims leading/trailing slashes and backslashes, converts
// backslashes to forward slashes, and splits into non-empty segments.
// It returns a ValidationError if any segment is empty after trimming.
func Normalize(path string) ([]string, error) {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, &archiveerr.ValidationError{Field: "path", Reason: "empty path segment"}
		}
	}
	return segments, nil
}

// Join reconstructs a cached_path string from ordered segments.
func Join(segments []string) string {
	return strings.Join(segments, "/")
}

// Resolve walks path from the archive root, creating intermediate
// Vault nodes as needed when createIfMissing is true. Only the final
// segment takes typ and metadata; metadata is applied only if the
// terminal node is created during this call (spec.md §4.5).
//
// Resolve returns (nil, nil) — no error — when the path does not
// resolve and createIfMissing is false. Re-resolving an existing path
// with createIfMissing is idempotent and never mutates timestamps.
func Resolve(ctx context.Context, cat *catalog.Catalog, path string, createIfMissing bool, typ catalog.NodeType, metadata catalog.Metadata) (*catalog.Node, error) {
	segments, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, &archiveerr.ValidationError{Field: "path", Reason: "path must have at least one segment"}
	}

	if !createIfMissing {
		return walkReadOnly(ctx, cat.DB(), segments)
	}

	var result *catalog.Node
	txErr := cat.WithTx(ctx, func(tx *sqlx.Tx) error {
		var genErr error
		result, genErr = walkCreating(ctx, tx, segments, typ, metadata)
		return genErr
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

func walkReadOnly(ctx context.Context, ext catalog.Ext, segments []string) (*catalog.Node, error) {
	var parentID *string
	var cur *catalog.Node
	for _, name := range segments {
		n, err := catalog.GetChildByName(ctx, ext, parentID, name)
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		cur = n
		id := n.ID
		parentID = &id
	}
	return cur, nil
}

func walkCreating(ctx context.Context, ext catalog.Ext, segments []string, typ catalog.NodeType, metadata catalog.Metadata) (*catalog.Node, error) {
	var parentID *string
	cachedSoFar := ""
	var cur *catalog.Node

	for i, name := range segments {
		isFinal := i == len(segments)-1

		existing, lookupErr := catalog.GetChildByName(ctx, ext, parentID, name)
		switch {
		case lookupErr == nil:
			cur = existing
		case isNotFound(lookupErr):
			cur = nil
		default:
			return nil, lookupErr
		}

		if cachedSoFar == "" {
			cachedSoFar = name
		} else {
			cachedSoFar = cachedSoFar + "/" + name
		}

		if cur == nil {
			segType := catalog.Vault
			var segMeta catalog.Metadata
			if isFinal {
				segType = typ
				segMeta = metadata
			}
			if !segType.Valid() {
				return nil, &archiveerr.ValidationError{Field: "type", Reason: "unknown node type"}
			}

			metaJSON, marshalErr := catalog.MarshalMetadata(segMeta)
			if marshalErr != nil {
				return nil, marshalErr
			}

			now := time.Now().UTC()
			newNode := &catalog.Node{
				ID:           uuid.NewString(),
				Parent:       parentID,
				Type:         segType,
				Name:         name,
				CachedPath:   cachedSoFar,
				MetadataJSON: metaJSON,
				CreatedAt:    now,
				LastModified: now,
			}
			if err := catalog.InsertNode(ctx, ext, newNode); err != nil {
				return nil, err
			}
			cur = newNode
		}

		id := cur.ID
		parentID = &id
	}
	return cur, nil
}

func isNotFound(err error) bool {
	_, ok := err.(*archiveerr.NotFoundError)
	return ok
}

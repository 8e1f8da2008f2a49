// Package export emits the static-export manifest (spec.md §4.10):
// a single JSON document describing every node, its tags and outgoing
// relationships, its file references, and per-blob size/ext/part
// counts, for an offline viewer to read directly against the existing
// blobs/ shard layout. Grounded on models/file.go's
// FileResponse/ToResponse safe-projection pattern, applied here to
// nodes instead of files.
package export

import (
	"context"
	"encoding/json"

	"github.com/dlfi/archive/internal/archiveerr"
	"github.com/dlfi/archive/internal/catalog"
	"github.com/dlfi/archive/internal/vaultcrypto"
)

// FileRef is one node's attached blob, projected for the viewer.
type FileRef struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
	Ext  string `json:"ext"`
}

// Relationship is one outgoing edge, with its target resolved from a
// node id to a cached_path at export time so the viewer never needs to
// look ids up.
type Relationship struct {
	Relation   string `json:"relation"`
	TargetPath string `json:"target_path"`
}

// NodeEntry is one node's projection into the manifest.
type NodeEntry struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Name          string                 `json:"name"`
	Path          string                 `json:"path"`
	ParentID      *string                `json:"parent_id"`
	Metadata      map[string]interface{} `json:"metadata"`
	Tags          []string               `json:"tags"`
	Relationships []Relationship         `json:"relationships"`
	Files         []FileRef              `json:"files"`
}

// BlobEntry is one blob's projection into the manifest.
type BlobEntry struct {
	Size  int64  `json:"size"`
	Ext   string `json:"ext"`
	Parts int    `json:"parts"`
}

// Manifest is the full static-export document (spec.md §6:
// "R/manifest.json").
type Manifest struct {
	Nodes []NodeEntry          `json:"nodes"`
	Blobs map[string]BlobEntry `json:"blobs"`
}

// Build walks the whole catalog and assembles a Manifest.
func Build(ctx context.Context, ext catalog.Ext) (*Manifest, error) {
	allNodes, err := catalog.ListAllNodes(ctx, ext)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Blobs: map[string]BlobEntry{}}
	for _, n := range allNodes {
		entry, err := buildNodeEntry(ctx, ext, n)
		if err != nil {
			return nil, err
		}
		m.Nodes = append(m.Nodes, *entry)

		for _, f := range entry.Files {
			if _, ok := m.Blobs[f.Hash]; ok {
				continue
			}
			blob, err := catalog.GetBlob(ctx, ext, f.Hash)
			if err != nil {
				return nil, err
			}
			m.Blobs[f.Hash] = BlobEntry{Size: blob.SizeBytes, Ext: blob.Ext, Parts: blob.PartCount}
		}
	}
	return m, nil
}

func buildNodeEntry(ctx context.Context, ext catalog.Ext, n catalog.Node) (*NodeEntry, error) {
	meta, err := catalog.UnmarshalMetadata(n.MetadataJSON)
	if err != nil {
		return nil, err
	}
	tags, err := catalog.ListTagsForNode(ctx, ext, n.ID)
	if err != nil {
		return nil, err
	}

	var rels []Relationship
	edges, err := catalog.EdgesFrom(ctx, ext, n.ID, "")
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		target, err := catalog.GetNode(ctx, ext, e.Target)
		if err != nil {
			continue // target vanished between listing and resolution; skip rather than fail the whole export
		}
		rels = append(rels, Relationship{Relation: e.Relation, TargetPath: target.CachedPath})
	}

	var files []FileRef
	if n.Type == catalog.Record {
		links, err := catalog.ListNodeFiles(ctx, ext, n.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			blob, err := catalog.GetBlob(ctx, ext, l.Blob)
			if err != nil {
				return nil, err
			}
			files = append(files, FileRef{Name: l.OriginalName, Hash: l.Blob, Size: blob.SizeBytes, Ext: blob.Ext})
		}
	}

	return &NodeEntry{
		ID:            n.ID,
		Type:          string(n.Type),
		Name:          n.Name,
		Path:          n.CachedPath,
		ParentID:      n.Parent,
		Metadata:      meta,
		Tags:          tags,
		Relationships: rels,
		Files:         files,
	}, nil
}

// Marshal serializes m as JSON, sealing it with crypto if the archive
// is encrypted — so the manifest carries the same confidentiality
// guarantee as the blobs it describes (spec.md §4.10: "If the vault is
// encrypted, the manifest itself is AEAD-encrypted with the same key").
func Marshal(m *Manifest, crypto *vaultcrypto.Crypto) ([]byte, error) {
	plain, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, &archiveerr.IOError{Op: "marshal manifest", Err: err}
	}
	if crypto == nil || !crypto.Enabled() {
		return plain, nil
	}
	sealed, err := crypto.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return sealed, nil
}

package autocomplete

import (
	"context"
	"strings"
	"sync"

	"github.com/dlfi/archive/internal/catalog"
)

// MaxSuggestions caps the ranked result list (spec.md §4.9: "capped
// (≈25)").
const MaxSuggestions = 25

// Kind tags what enumeration a Suggestion was drawn from.
type Kind string

const (
	KindKeyword     Kind = "keyword"
	KindMetadataKey Kind = "metadata_key"
	KindTag         Kind = "tag"
	KindRelation    Kind = "relation"
	KindExtension   Kind = "extension"
	KindPath        Kind = "path"
	KindNodeType    Kind = "node_type"
)

// Suggestion is one ranked completion candidate.
type Suggestion struct {
	Label       string
	Insert      string
	Type        Kind
	Description string
}

var reservedKeywords = []Suggestion{
	{Label: "tag", Insert: "tag:", Type: KindKeyword, Description: "nodes carrying a tag"},
	{Label: "inside", Insert: "inside:", Type: KindKeyword, Description: "descendants of a path"},
	{Label: "path", Insert: "path:", Type: KindKeyword, Description: "path pattern with * and **"},
	{Label: "ext", Insert: "ext:", Type: KindKeyword, Description: "file extension"},
	{Label: "files", Insert: "files", Type: KindKeyword, Description: "file-link count comparison"},
	{Label: "size", Insert: "size", Type: KindKeyword, Description: "total attached blob size"},
	{Label: "type", Insert: "type:", Type: KindKeyword, Description: "VAULT or RECORD"},
	{Label: "limit", Insert: "limit:", Type: KindKeyword, Description: "cap result count"},
	{Label: "sort", Insert: "sort:", Type: KindKeyword, Description: "name, path, created, or modified"},
	{Label: "preview", Insert: "preview:", Type: KindKeyword, Description: "preview option"},
}

var nodeTypes = []string{"VAULT", "RECORD"}
var sortFields = []string{"name", "path", "created", "modified", "-name", "-path", "-created", "-modified"}

// Provider caches the catalog-wide enumerations autocomplete draws
// suggestions from (metadata keys, tags, relation types, extensions,
// paths), refreshing only when the catalog's generation counter has
// moved since the last fill. Every mutation that can add a new
// enumeration value (ingest, a config transaction, or a
// path-resolver-driven node creation) runs inside Catalog.WithTx, which
// bumps that counter — so the cache invalidates itself on the next
// Suggest call without any component needing to call back into this
// package explicitly.
type Provider struct {
	cat *catalog.Catalog

	mu         sync.RWMutex
	generation int64
	filled     bool
	keys       []string
	tags       []string
	relations  []string
	exts       []string
	paths      []string
}

// NewProvider builds a Provider over cat. The cache is empty until the
// first Suggest call.
func NewProvider(cat *catalog.Catalog) *Provider {
	return &Provider{cat: cat, generation: -1}
}

func (p *Provider) refresh(ctx context.Context) error {
	p.mu.RLock()
	stale := !p.filled || p.generation != p.cat.Generation()
	p.mu.RUnlock()
	if !stale {
		return nil
	}

	db := p.cat.DB()
	keys, err := catalog.ListMetadataKeys(ctx, db)
	if err != nil {
		return err
	}
	tags, err := catalog.ListAllTags(ctx, db)
	if err != nil {
		return err
	}
	relations, err := catalog.ListRelationTypes(ctx, db)
	if err != nil {
		return err
	}
	exts, err := catalog.ListExtensions(ctx, db)
	if err != nil {
		return err
	}
	paths, err := catalog.ListPaths(ctx, db, 500)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.keys, p.tags, p.relations, p.exts, p.paths = keys, tags, relations, exts, paths
	p.generation = p.cat.Generation()
	p.filled = true
	p.mu.Unlock()
	return nil
}

// Suggest classifies the caret position in src and returns ranked
// suggestions for it.
func (p *Provider) Suggest(ctx context.Context, src string, caret int) ([]Suggestion, error) {
	if err := p.refresh(ctx); err != nil {
		return nil, err
	}

	c := Classify(src, caret)

	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Suggestion
	switch c.Kind {
	case StartOfTerm, PartialKeyword:
		out = append(out, matchKeywords(c.Prefix)...)
		out = append(out, matchStrings(p.keys, c.Prefix, KindMetadataKey, "metadata key")...)
	case AfterOperator:
		out = suggestionsForKey(c.Key, c.Prefix, p)
	case AfterBang:
		out = matchStrings(p.paths, c.Prefix, KindPath, "path")
	case AfterRelationPath:
		out = matchStrings(p.relations, c.Prefix, KindRelation, "relation type")
	}

	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out, nil
}

func suggestionsForKey(key, prefix string, p *Provider) []Suggestion {
	switch strings.ToLower(key) {
	case "tag":
		return matchStrings(p.tags, prefix, KindTag, "tag value")
	case "ext":
		return matchStrings(p.exts, prefix, KindExtension, "extension")
	case "type":
		return matchStrings(nodeTypes, prefix, KindNodeType, "node type")
	case "inside", "path":
		return matchStrings(p.paths, prefix, KindPath, "path")
	case "sort":
		return matchStrings(sortFields, prefix, KindKeyword, "sort field")
	default:
		return nil
	}
}

func matchKeywords(prefix string) []Suggestion {
	var out []Suggestion
	lower := strings.ToLower(prefix)
	for _, kw := range reservedKeywords {
		if strings.HasPrefix(strings.ToLower(kw.Label), lower) {
			out = append(out, kw)
		}
	}
	return out
}

func matchStrings(values []string, prefix string, kind Kind, desc string) []Suggestion {
	var out []Suggestion
	lower := strings.ToLower(prefix)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			out = append(out, Suggestion{Label: v, Insert: v, Type: kind, Description: desc})
		}
	}
	return out
}

package catalog

// schemaVersion is the current forward schema version. spec.md's
// non-goals exclude migrations beyond a single forward bump; this
// implementation supports exactly v1 -> v2 and nothing further.
const schemaVersion = 2

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
	id            TEXT PRIMARY KEY,
	parent        TEXT REFERENCES nodes(id) ON DELETE CASCADE,
	type          TEXT NOT NULL,
	name          TEXT NOT NULL,
	cached_path   TEXT NOT NULL UNIQUE,
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	last_modified DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
CREATE INDEX IF NOT EXISTS idx_nodes_cached_path ON nodes(cached_path);

CREATE TABLE IF NOT EXISTS blobs (
	hash         TEXT PRIMARY KEY,
	ext          TEXT NOT NULL DEFAULT '',
	size_bytes   INTEGER NOT NULL,
	storage_path TEXT NOT NULL,
	part_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS node_files (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	node          TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	blob          TEXT NOT NULL REFERENCES blobs(hash),
	original_name TEXT NOT NULL,
	display_order INTEGER NOT NULL,
	added_at      DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_node_files_node ON node_files(node);

CREATE TABLE IF NOT EXISTS edges (
	source     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target     TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	relation   TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (source, target, relation)
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

CREATE TABLE IF NOT EXISTS tags (
	node TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	tag  TEXT NOT NULL,
	PRIMARY KEY (node, tag)
);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
`

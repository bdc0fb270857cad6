// Package keyspace names every Redis key the service reads or writes.
package keyspace

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "syllabus:"

// Keyspace derives keys from a common prefix.
type Keyspace struct {
	prefix string
}

// New creates a keyspace; an empty prefix selects DefaultPrefix.
func New(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the common key prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// ChunkPrefix is the key prefix indexed by the chunk index.
func (k Keyspace) ChunkPrefix() string { return k.prefix + "chunk:" }

// Chunk returns the hash key of a content chunk.
func (k Keyspace) Chunk(id string) string { return k.ChunkPrefix() + id }

// ChunkIndex returns the FT index name over chunk hashes.
func (k Keyspace) ChunkIndex() string { return k.prefix + "chunks:idx" }

// Node returns the hash key of a catalog node.
func (k Keyspace) Node(path string) string { return k.prefix + "node:" + path }

// EmbeddingCache returns the key of a cached embedding.
func (k Keyspace) EmbeddingCache(hash string) string { return k.prefix + "emb_cache:" + hash }

// SearchLog returns the search log stream key.
func (k Keyspace) SearchLog() string { return k.prefix + "search_log" }

// Conversation returns the key of a stored conversation.
func (k Keyspace) Conversation(id string) string { return k.prefix + "conv:" + id }

package store

// Store is the interface for the node-local key-value map. Every node owns
// exactly one Store; it is the unit of truth for that node and is only ever
// mutated through Set - either directly by a leader write or by a pushed
// replication call on a follower.
type Store interface {
	// Set inserts or updates a key-value pair unconditionally.
	// Last writer wins; there is no versioning or tie-break.
	Set(key, value string)
	// Get returns the current value for a key. The boolean return value
	// indicates whether the key was found.
	Get(key string) (value string, found bool)
	// Len returns the number of keys currently stored.
	Len() int
	// Snapshot returns a copy of the full store contents. The returned map
	// is owned by the caller and detached from the live store.
	Snapshot() map[string]string
}

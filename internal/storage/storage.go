// Package storage provides the local key-value persistence used by the
// progress store and the local identity provider. Values are opaque strings
// (serialized JSON documents) addressed by a slot key.
package storage

// Slot keys for the two persisted documents
const (
	UsersKey    = "lingua_users_v1"
	ProgressKey = "lingua_progress_v1"
)

// Store is the storage collaborator the rest of the system depends on
type Store interface {
	// Get returns the value for key. The second result is false when the
	// slot has never been written.
	Get(key string) (string, bool, error)
	// Put replaces the full content of the slot in a single write.
	Put(key, value string) error
}

// Package kvstore defines the local snapshot store abstraction.
//
// The draft snapshot and the import queue are the only durable state shared
// between concurrent sessions on one device. Both live behind this interface
// under fixed keys so that tests can substitute an in-memory fake and no
// component reaches for ad hoc storage paths.
package kvstore

// Fixed keys for the shared resources.
const (
	KeyDraft       = "draft"
	KeyImportQueue = "import_queue"
)

// Store is the interface for named-key local storage.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Set atomically writes the value for key.
	Set(key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Path returns the backing file path for key, or "" when the store is
	// not file-backed. Used to watch for writes from other processes.
	Path(key string) string
}

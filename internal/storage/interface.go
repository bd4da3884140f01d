package storage

// ArtifactStore is the contract for persisting export artifacts
type ArtifactStore interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

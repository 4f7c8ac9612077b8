package storage

// StorageInterface defines the contract for report snapshot storage
type StorageInterface interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}

// NopStorage discards everything; used when snapshots are disabled
type NopStorage struct{}

var _ StorageInterface = NopStorage{}

func (NopStorage) Store(string, []byte) error { return nil }

func (NopStorage) Retrieve(filename string) ([]byte, error) {
	return nil, &NotFoundError{Name: filename}
}

func (NopStorage) List(string) ([]string, error) { return nil, nil }

func (NopStorage) Delete(string) error { return nil }

// NotFoundError is returned when a snapshot does not exist
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "snapshot not found: " + e.Name
}

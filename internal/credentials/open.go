package credentials

import "fmt"

// Store kinds accepted by Open.
const (
	KindFile   = "file"
	KindDisk   = "disk"
	KindMemory = "memory"
)

// Open builds the store named by kind. path is the file for "file", the
// directory for "disk", and the namespace for "kv"; it is unused for "memory".
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", KindFile:
		return NewFileStore(path)
	case KindDisk:
		return NewDiskStore(path)
	case KindMemory:
		return NewMemoryStore(nil), nil
	default:
		store, ok, err := openPlatform(kind, path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unknown credential store %q", kind)
		}
		return store, nil
	}
}

//go:build js && wasm

package credentials

// KindKV selects the Workers KV store.
const KindKV = "kv"

func openPlatform(kind, path string) (Store, bool, error) {
	if kind != KindKV {
		return nil, false, nil
	}
	store, err := NewKVStore(path)
	if err != nil {
		return nil, true, err
	}
	return store, true, nil
}

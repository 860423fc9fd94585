//go:build js && wasm

package credentials

import (
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// DefaultKVNamespace is the binding name configured in wrangler.toml.
const DefaultKVNamespace = "modelgate_admin_kv"

// KVStore implements Store on a Cloudflare Workers KV namespace.
type KVStore struct {
	namespace string
	kvStore   *kv.Namespace
}

// NewKVStore opens the KV namespace bound as namespace.
func NewKVStore(namespace string) (*KVStore, error) {
	if namespace == "" {
		namespace = DefaultKVNamespace
	}
	kvStore, err := kv.NewNamespace(namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &KVStore{namespace: namespace, kvStore: kvStore}, nil
}

// Get retrieves a value from KV. Missing keys come back as "".
func (k *KVStore) Get(key string) (string, error) {
	value, err := k.kvStore.GetString(key, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	return value, nil
}

// Set stores a value in KV.
func (k *KVStore) Set(key, value string) error {
	if err := k.kvStore.PutString(key, value, nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}

// Remove deletes a key from KV.
func (k *KVStore) Remove(key string) error {
	if err := k.kvStore.Delete(key); err != nil {
		return fmt.Errorf("failed to delete %s from KV: %w", key, err)
	}
	return nil
}

// Name returns the store name
func (k *KVStore) Name() string {
	return fmt.Sprintf("KVStore(%s)", k.namespace)
}

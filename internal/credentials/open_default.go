//go:build !js || !wasm

package credentials

func openPlatform(kind, path string) (Store, bool, error) {
	return nil, false, nil
}

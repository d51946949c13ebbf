//go:build windows

package store

import "os"

// writeFileAtomic falls back to a plain write; renameio has no Windows support.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

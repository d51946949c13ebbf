//go:build !windows

package store

import (
	"os"

	"github.com/google/renameio"
)

// writeFileAtomic writes data to a temporary file and renames it over path,
// so readers never observe a partial value.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}

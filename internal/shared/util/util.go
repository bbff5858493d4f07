package util

import (
	"os"
	"path/filepath"
)

// WriteFileWithDirs creates parent directories (0755) and writes the file
// with perm.
func WriteFileWithDirs(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, perm)
}

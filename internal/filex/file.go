// Package filex prepares the on-disk locations the relay writes spill files to.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir makes sure dir exists and returns its absolute path.
// An empty dir resolves to the OS temp directory; a relative one is taken
// relative to the working directory.
func EnsureDir(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

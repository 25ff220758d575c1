// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// FindFileFold looks for a regular file named name directly inside each of
// dirs, in order, comparing names case-insensitively. An exact-case match in a
// directory wins over a folded one. Missing directories are skipped. When
// nothing matches the returned error wraps os.ErrNotExist.
func FindFileFold(dirs []string, name string) (string, error) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("error accessing path %s: %w", dir, err)
		}

		folded := ""
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if e.Name() == name {
				return filepath.Join(dir, e.Name()), nil
			}
			if folded == "" && strings.EqualFold(e.Name(), name) {
				folded = filepath.Join(dir, e.Name())
			}
		}
		if folded != "" {
			return folded, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, os.ErrNotExist)
}

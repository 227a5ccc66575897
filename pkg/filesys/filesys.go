package filesys

import (
	"errors"
	"os"
	"path/filepath"
)

var (
	ErrIsNotDir = errors.New("path isn't a directory")
)

// Canonicalize resolves path against the current working directory and
// collapses symlinks, "." and ".." segments. Two spellings of the same file
// canonicalize equal. The file itself does not have to exist yet: for a
// missing leaf the parent directory is resolved and the base name appended.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Split(abs)
	resolvedDir, dirErr := filepath.EvalSymlinks(filepath.Clean(dir))
	if dirErr != nil {
		if os.IsNotExist(dirErr) {
			return abs, nil
		}
		return "", dirErr
	}

	return filepath.Join(resolvedDir, base), nil
}

func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if !force && !os.IsNotExist(err) {
		return err
	}

	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, 0755)
}

func ReadDir(pattern string) ([]string, error) {
	files, err := filepath.Glob(pattern)
	return files, err
}

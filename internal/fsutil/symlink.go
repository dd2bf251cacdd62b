package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Symlink creates link pointing at target, creating the parent directory of
// link if needed. An existing link that already points at target is left in
// place and reported as success.
func Symlink(target, link string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return err
	}
	err := os.Symlink(target, link)
	if err == nil || !errors.Is(err, fs.ErrExist) {
		return err
	}
	if cur, rerr := os.Readlink(link); rerr == nil && cur == target {
		return nil
	}
	return err
}

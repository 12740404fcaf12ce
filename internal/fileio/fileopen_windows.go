//go:build windows

package fileio

import "os"

// openFileNoFollow opens a file for writing.
// O_NOFOLLOW is not available on Windows; WriteAtomic still refuses symlinked destinations.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

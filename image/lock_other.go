//go:build !unix

package image

import "os"

// lockFile does nothing on systems without flock.
func lockFile(f *os.File) (func() error, error) {
	return func() error { return nil }, nil
}

//go:build unix

package image

import (
	"errors"
	"os"

	"github.com/usbfat/fat32/checkpoint"
	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive advisory lock on f without blocking.
func lockFile(f *os.File) (func() error, error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, checkpoint.Errorf(ErrLocked, "%s", f.Name())
		}
		return nil, checkpoint.From(err)
	}
	return func() error {
		return unix.Flock(fd, unix.LOCK_UN)
	}, nil
}

package fat32

import "errors"

// These errors classify every failure returned by this package. Returned errors are
// decorated by the checkpoint package, so compare them using errors.Is.
var (
	// ErrTransport means a block device command failed: unit not ready, I/O error or a
	// command that could not be submitted.
	ErrTransport = errors.New("block device command failed")

	// ErrNotFound means a partition index, file or directory does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAllocationExhausted means the FAT has fewer free clusters than requested.
	// The FAT is left unmodified.
	ErrAllocationExhausted = errors.New("no free clusters left")

	// ErrDecode means an on-disk structure is malformed.
	ErrDecode = errors.New("malformed on-disk structure")

	// ErrDirectoryFull means the current directory has not enough free entry slots.
	// Growing a directory is not supported.
	ErrDirectoryFull = errors.New("directory has no free entry slots")

	// ErrNotMounted is returned by every operation on an unmounted Driver.
	ErrNotMounted = errors.New("no partition mounted")

	// ErrAtRoot is returned when leaving the root directory.
	ErrAtRoot = errors.New("already at the root directory")

	// ErrExist means a new entry would shadow an existing one. Existing files cannot be
	// resized or replaced.
	ErrExist = errors.New("entry already exists")

	// ErrInvalidName means the name cannot be stored in a FAT32 directory.
	ErrInvalidName = errors.New("invalid file name")

	// ErrUnsupported is returned for operations FAT32 or this driver does not offer.
	ErrUnsupported = errors.New("operation not supported")
)

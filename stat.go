package fat32

import (
	"os"
	"time"
)

// FileInfo returns an os.FileInfo view of the entry.
func (e FileEntry) FileInfo() os.FileInfo {
	return entryFileInfo{e}
}

type entryFileInfo struct {
	entry FileEntry
}

func (e entryFileInfo) Name() string {
	return e.entry.Name()
}

func (e entryFileInfo) Size() int64 {
	return int64(e.entry.Size)
}

func (e entryFileInfo) Mode() os.FileMode {
	mode := os.FileMode(0666)
	if e.entry.IsReadOnly {
		mode = 0444
	}
	if e.IsDir() {
		return mode | 0111 | os.ModeDir
	}
	return mode
}

func (e entryFileInfo) ModTime() time.Time {
	return e.entry.LastModified
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.IsDirectory
}

// Sys returns the underlying FileEntry.
func (e entryFileInfo) Sys() interface{} {
	return e.entry
}

// rootFileInfo describes the root directory, which has no entry of its own.
type rootFileInfo struct{}

func (rootFileInfo) Name() string       { return "/" }
func (rootFileInfo) Size() int64        { return 0 }
func (rootFileInfo) Mode() os.FileMode  { return os.ModeDir | 0777 }
func (rootFileInfo) ModTime() time.Time { return time.Time{} }
func (rootFileInfo) IsDir() bool        { return true }
func (rootFileInfo) Sys() interface{}   { return nil }

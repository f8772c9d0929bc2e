package fat32

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/usbfat/fat32/checkpoint"
)

type GoDirEntry struct {
	fs.FileInfo
}

func (g GoDirEntry) Type() fs.FileMode {
	return g.FileInfo.Mode().Type()
}

func (g GoDirEntry) Info() (fs.FileInfo, error) {
	return g.FileInfo, nil
}

// GoFile exposes the read side of a File as fs.ReadDirFile.
type GoFile struct {
	file *File
}

func (g GoFile) Stat() (fs.FileInfo, error) {
	return g.file.Stat()
}

func (g GoFile) Read(bytes []byte) (int, error) {
	return g.file.Read(bytes)
}

func (g GoFile) Close() error {
	return g.file.Close()
}

func (g GoFile) ReadDir(n int) ([]fs.DirEntry, error) {
	entries, err := g.file.Readdir(n)

	goEntries := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		goEntries[i] = GoDirEntry{e}
	}

	return goEntries, err
}

// GoFs wraps the afero view of a mounted Driver to be compatible with fs.FS.
type GoFs struct {
	*Fs
}

// NewGoFS returns the fs.FS view of driver, which has to be mounted.
func NewGoFS(driver *Driver) (*GoFs, error) {
	if !driver.Mounted() {
		return nil, checkpoint.From(ErrNotMounted)
	}
	return &GoFs{NewFs(driver)}, nil
}

// aferoPath converts the io/fs path name into a path of the afero view. FAT names cannot
// contain a backslash, so such names do not exist.
func aferoPath(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	if strings.Contains(name, `\`) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	if name == "." {
		return "/", nil
	}
	return "/" + name, nil
}

func (g GoFs) Open(name string) (fs.File, error) {
	p, err := aferoPath("open", name)
	if err != nil {
		return nil, err
	}

	file, err := g.Fs.Open(p)
	if err != nil {
		return nil, err
	}

	f, ok := file.(*File)
	if !ok {
		return nil, errors.New("invalid File implementation")
	}

	return GoFile{f}, nil
}

// Stat implements fs.StatFS.
func (g GoFs) Stat(name string) (fs.FileInfo, error) {
	p, err := aferoPath("stat", name)
	if err != nil {
		return nil, err
	}
	return g.Fs.Stat(p)
}

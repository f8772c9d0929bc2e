package fat32

import (
	"errors"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/usbfat/fat32/checkpoint"
)

// Fs is an afero.Fs over a mounted Driver. Paths are resolved from the root directory and do
// not change the current directory of the driver.
//
// Files and directories can be created, but existing entries cannot be changed, renamed or
// removed. Calls are serialized, so an Fs may be used from several goroutines.
type Fs struct {
	mu     sync.Mutex
	driver *Driver
	now    func() time.Time
}

var _ afero.Fs = (*Fs)(nil)

// NewFs returns the afero.Fs view of driver, which has to be mounted.
func NewFs(driver *Driver) *Fs {
	return &Fs{
		driver: driver,
		now:    time.Now,
	}
}

// pathError converts err into an *os.PathError which os.IsNotExist and os.IsExist understand.
func pathError(op, name string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		err = syscall.ENOENT
	case errors.Is(err, ErrExist):
		err = syscall.EEXIST
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

// attrsFromPerm maps missing write permission to the read only attribute.
func attrsFromPerm(perm os.FileMode) byte {
	if perm&0222 == 0 {
		return AttrReadOnly
	}
	return 0
}

func (fs *Fs) readFile(p string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.driver.ReadFilePath(p)
}

func (fs *Fs) readDir(p string) ([]FileEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.driver.ReadDirPath(p)
}

func (fs *Fs) create(p string, data []byte, attrs byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.driver.CreatePath(p, data, attrs, false, fs.now())
}

func (fs *Fs) stat(name string) (FileEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.driver.Stat(name)
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	err := fs.driver.CreatePath(name, nil, attrsFromPerm(perm), true, fs.now())
	if err != nil {
		return pathError("mkdir", name, err)
	}
	return nil
}

func (fs *Fs) MkdirAll(p string, perm os.FileMode) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(cleanPath(p), "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)

		entry, err := fs.stat(current)
		switch {
		case err == nil && !entry.IsDirectory:
			return pathError("mkdir", current, syscall.ENOTDIR)
		case err == nil:
			continue
		case !errors.Is(err, ErrNotFound):
			return pathError("mkdir", current, err)
		}

		if err := fs.Mkdir(current, perm); err != nil {
			return err
		}
	}
	return nil
}

func (fs *Fs) Open(name string) (afero.File, error) {
	return fs.OpenFile(name, os.O_RDONLY, 0)
}

func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	entry, err := fs.stat(name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, pathError("open", name, err)
	}

	if err == nil {
		if flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL {
			return nil, pathError("open", name, checkpoint.From(ErrExist))
		}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_TRUNC) != 0 {
			return nil, pathError("open", name, checkpoint.Errorf(ErrUnsupported, "existing entries cannot be written"))
		}

		var stat os.FileInfo = rootFileInfo{}
		if cleanPath(name) != "/" {
			stat = entry.FileInfo()
		}
		return &File{
			fs:          fs,
			path:        cleanPath(name),
			isDirectory: entry.IsDirectory,
			stat:        stat,
		}, nil
	}

	if flag&os.O_CREATE == 0 {
		return nil, pathError("open", name, err)
	}

	dir, _ := path.Split(cleanPath(name))
	parent, err := fs.stat(dir)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	if !parent.IsDirectory {
		return nil, pathError("open", name, syscall.ENOTDIR)
	}
	if err := validLongName(path.Base(cleanPath(name))); err != nil {
		return nil, pathError("open", name, err)
	}

	return &File{
		fs:      fs,
		path:    cleanPath(name),
		pending: true,
		attrs:   attrsFromPerm(perm),
	}, nil
}

func (fs *Fs) Remove(name string) error {
	return pathError("remove", name, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) RemoveAll(path string) error {
	return pathError("removeall", path, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) Rename(oldname, newname string) error {
	return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: checkpoint.From(ErrUnsupported)}
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	entry, err := fs.stat(name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	if cleanPath(name) == "/" {
		return rootFileInfo{}, nil
	}
	return entry.FileInfo(), nil
}

func (fs *Fs) Name() string {
	return "fat32"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return pathError("chmod", name, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return pathError("chown", name, checkpoint.From(ErrUnsupported))
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return pathError("chtimes", name, checkpoint.From(ErrUnsupported))
}

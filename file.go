package fat32

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/usbfat/fat32/checkpoint"
)

// These errors may occur while processing a file.
var (
	ErrReadFile  = errors.New("could not read file completely")
	ErrSeekFile  = errors.New("could not seek inside of the file")
	ErrReadDir   = errors.New("could not read the directory")
	ErrWriteFile = errors.New("could not write the file")
)

// fileSource provides all methods needed from the filesystem by File.
// It mainly exists to be able to mock the Fs in tests.
// Generated mock using mockgen:
//  mockgen -source=file.go -destination=file_mock.go -package fat32
type fileSource interface {
	readFile(p string) ([]byte, error)
	readDir(p string) ([]FileEntry, error)
	create(p string, data []byte, attrs byte) error
}

// File is an afero.File of a Fs.
// Existing files are read only. A file opened with os.O_CREATE collects everything written to it
// and is stored on Close, because FAT32 entries cannot be resized by this driver.
type File struct {
	fs   fileSource
	path string

	isDirectory bool
	stat        os.FileInfo
	offset      int64

	// content of a readable file, loaded on first access.
	content []byte
	loaded  bool

	// pending is set for a new file which is written on Close.
	pending bool
	attrs   byte
	buffer  []byte
}

var _ afero.File = (*File)(nil)

func (f *File) size() int64 {
	if f.pending {
		return int64(len(f.buffer))
	}
	return f.stat.Size()
}

func (f *File) Close() error {
	var err error
	if f.pending {
		err = f.fs.create(f.path, f.buffer, f.attrs)
	}

	f.fs = nil
	f.path = ""
	f.isDirectory = false
	f.stat = nil
	f.offset = 0
	f.content = nil
	f.loaded = false
	f.pending = false
	f.attrs = 0
	f.buffer = nil

	return checkpoint.Wrap(err, ErrWriteFile)
}

func (f *File) load() error {
	if f.loaded {
		return nil
	}
	data, err := f.fs.readFile(f.path)
	if err != nil {
		return err
	}
	f.content = data
	f.loaded = true
	return nil
}

func (f *File) Read(p []byte) (n int, err error) {
	if p == nil {
		return 0, nil
	}

	n, err = f.ReadAt(p, f.offset)
	f.offset += int64(n)
	if err == io.EOF && n > 0 {
		return n, nil
	}
	return n, err
}

func (f *File) ReadAt(p []byte, off int64) (n int, err error) {
	if p == nil {
		return 0, nil
	}
	if f.isDirectory {
		return 0, checkpoint.Wrap(syscall.EISDIR, ErrReadFile)
	}
	if off < 0 {
		return 0, checkpoint.Wrap(syscall.EINVAL, ErrReadFile)
	}

	// Reading over the end makes no sense.
	if f.size() <= off {
		return 0, io.EOF
	}

	source := f.buffer
	if !f.pending {
		if err := f.load(); err != nil {
			return 0, checkpoint.Wrap(err, ErrReadFile)
		}
		source = f.content
	}

	n = copy(p, source[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek jumps to a specific offset in the file. This affects all Read and Write operations except ReadAt and WriteAt.
// May return a syscall.EINVAL error if the whence value is invalid.
// May return an afero.ErrOutOfRange error if the offset is out of range.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = f.offset + offset
	case io.SeekEnd:
		offset = f.size() + offset
	default:
		return 0, checkpoint.Wrap(ErrSeekFile, fmt.Errorf("%w, offset: %v, whence: %v", syscall.EINVAL, offset, whence))
	}

	if offset < 0 || (!f.pending && offset > f.size()) {
		return 0, checkpoint.Wrap(afero.ErrOutOfRange, fmt.Errorf("%w, offset: %v, whence: %v", ErrSeekFile, offset, whence))
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Write(p []byte) (n int, err error) {
	n, err = f.WriteAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

// WriteAt writes into a new file. Existing files cannot be written.
func (f *File) WriteAt(p []byte, off int64) (n int, err error) {
	if !f.pending {
		return 0, checkpoint.Wrap(syscall.EBADF, ErrUnsupported)
	}
	if off < 0 {
		return 0, checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)
	}

	end := off + int64(len(p))
	if end > int64(len(f.buffer)) {
		grown := make([]byte, end)
		copy(grown, f.buffer)
		f.buffer = grown
	}
	return copy(f.buffer[off:], p), nil
}

func (f *File) Name() string {
	return f.stat.Name()
}

// Readdir reads the contents of a directory.
// May return syscall.ENOTDIR if the current File is no directory.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if !f.isDirectory {
		return nil, checkpoint.Wrap(syscall.ENOTDIR, ErrReadDir)
	}

	content, err := f.fs.readDir(f.path)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	if f.offset > int64(len(content)) {
		f.offset = int64(len(content))
	}
	content = content[f.offset:]

	if count > 0 {
		if len(content) == 0 {
			return nil, io.EOF
		}
		if count < len(content) {
			content = content[:count]
		}
	}
	f.offset += int64(len(content))

	result := make([]os.FileInfo, len(content))
	for i := range content {
		result[i] = content[i].FileInfo()
	}

	return result, nil
}

func (f *File) Readdirnames(count int) ([]string, error) {
	content, err := f.Readdir(count)
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	names := make([]string, len(content))
	for i, entry := range content {
		names[i] = entry.Name()
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.pending {
		return FileEntry{
			LongName:     path.Base(f.path),
			IsReadOnly:   f.attrs&AttrReadOnly != 0,
			IsHidden:     f.attrs&AttrHidden != 0,
			Size:         uint32(len(f.buffer)),
			LastModified: time.Now(),
		}.FileInfo(), nil
	}
	return f.stat, nil
}

// Sync does nothing, a new file is stored on Close.
func (f *File) Sync() error {
	return nil
}

func (f *File) Truncate(size int64) error {
	if !f.pending {
		return checkpoint.Wrap(syscall.EBADF, ErrUnsupported)
	}
	if size < 0 {
		return checkpoint.Wrap(syscall.EINVAL, ErrWriteFile)
	}
	if size <= int64(len(f.buffer)) {
		f.buffer = f.buffer[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, f.buffer)
	f.buffer = grown
	return nil
}

func (f *File) WriteString(s string) (ret int, err error) {
	return f.Write([]byte(s))
}

// Package image emulates a SCSI mass storage device on top of a disk image file.
//
// Commands are executed on their own goroutine and reported through the
// fat32.CompletionObserver, just like a USB bulk transport reports them.
package image

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/usbfat/fat32"
	"github.com/usbfat/fat32/checkpoint"
	"github.com/usbfat/fat32/scsi"
)

var (
	ErrBusy       = errors.New("a command is already in progress")
	ErrNoObserver = errors.New("no completion observer registered")
	ErrClosed     = errors.New("device is closed")
	ErrLocked     = errors.New("image is in use by another process")
	ErrImageSize  = errors.New("image size is not a multiple of the block size")
)

// Fault decides whether cmd fails with scsi.StatusFailed instead of being executed.
type Fault func(cmd scsi.Command) bool

// Device is a fat32.Transport backed by an image file. It accepts one command at a time.
type Device struct {
	file      afero.File
	blockSize int
	blocks    uint32
	log       logrus.FieldLogger
	fault     Fault
	unlock    func() error

	mu        sync.Mutex
	observer  fat32.CompletionObserver
	busy      bool
	closed    bool
	ready     bool
	prevented bool

	running sync.WaitGroup
}

var _ fat32.Transport = (*Device)(nil)

// Option configures a Device.
type Option func(*Device)

// WithBlockSize sets the logical block size. Default 512.
func WithBlockSize(size int) Option {
	return func(d *Device) {
		d.blockSize = size
	}
}

// WithLogger sets the logger used for command tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Device) {
		d.log = log
	}
}

// WithFault injects failures, e.g. to test error handling of callers.
func WithFault(f Fault) Option {
	return func(d *Device) {
		d.fault = f
	}
}

// Open opens the image name of fs for reading and writing. Images on the OS filesystem are locked
// exclusively while the Device is open.
func Open(fs afero.Fs, name string, opts ...Option) (*Device, error) {
	file, err := fs.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	unlock := func() error { return nil }
	if osFile, ok := file.(*os.File); ok {
		unlock, err = lockFile(osFile)
		if err != nil {
			file.Close()
			return nil, err
		}
	}

	d, err := New(file, opts...)
	if err != nil {
		unlock()
		file.Close()
		return nil, err
	}
	d.unlock = unlock
	return d, nil
}

// New returns a Device on an already opened image. Close closes file.
func New(file afero.File, opts ...Option) (*Device, error) {
	d := &Device{
		file:      file,
		blockSize: 512,
		log:       logrus.StandardLogger(),
		ready:     true,
		unlock:    func() error { return nil },
	}
	for _, opt := range opts {
		opt(d)
	}

	stat, err := file.Stat()
	if err != nil {
		return nil, checkpoint.From(err)
	}
	if stat.Size()%int64(d.blockSize) != 0 {
		return nil, checkpoint.Errorf(ErrImageSize, "%d bytes, block size %d", stat.Size(), d.blockSize)
	}
	d.blocks = uint32(stat.Size() / int64(d.blockSize))
	return d, nil
}

// SetObserver implements fat32.Transport.
func (d *Device) SetObserver(o fat32.CompletionObserver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = o
}

// Submit implements fat32.Transport. The command runs on its own goroutine.
func (d *Device) Submit(cmd scsi.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return checkpoint.From(ErrClosed)
	case d.observer == nil:
		return checkpoint.From(ErrNoObserver)
	case d.busy:
		return checkpoint.Errorf(ErrBusy, "%v", cmd)
	}
	if err := cmd.Validate(d.blockSize); err != nil {
		return checkpoint.From(err)
	}

	d.busy = true
	d.running.Add(1)
	go d.execute(cmd, d.observer)
	return nil
}

func (d *Device) execute(cmd scsi.Command, observer fat32.CompletionObserver) {
	defer d.running.Done()

	observer.OnOperationStarted(true)

	status, data := d.run(cmd)
	if data != nil {
		observer.OnDataReceived(data)
	}

	residue := 0
	if status != scsi.StatusGood {
		residue = cmd.DataInLength + len(cmd.DataOut)
	}

	// The next command may be submitted as soon as the completion is delivered.
	d.mu.Lock()
	d.busy = false
	d.mu.Unlock()

	observer.OnOperationCompleted(status, residue)
}

func (d *Device) run(cmd scsi.Command) (int, []byte) {
	log := d.log.WithField("cmd", cmd)
	if d.fault != nil && d.fault(cmd) {
		log.Debug("injected fault")
		return scsi.StatusFailed, nil
	}

	switch cmd.OpCode() {
	case scsi.OpTestUnitReady:
		d.mu.Lock()
		ready := d.ready
		d.mu.Unlock()
		if !ready {
			return scsi.StatusFailed, nil
		}
		return scsi.StatusGood, nil

	case scsi.OpPreventAllowRemoval:
		prevent, _ := scsi.ParsePreventAllowRemoval(cmd.CDB)
		d.mu.Lock()
		d.prevented = prevent
		d.mu.Unlock()
		return scsi.StatusGood, nil

	case scsi.OpRead10:
		lba, blocks, _ := scsi.ParseTransfer10(cmd.CDB)
		if !d.inRange(lba, blocks) {
			log.Warn("read out of range")
			return scsi.StatusFailed, nil
		}
		data := make([]byte, int(blocks)*d.blockSize)
		n, err := d.file.ReadAt(data, int64(lba)*int64(d.blockSize))
		if err != nil && !(err == io.EOF && n == len(data)) {
			log.WithError(err).Warn("read failed")
			return scsi.StatusFailed, nil
		}
		return scsi.StatusGood, data

	case scsi.OpWrite10:
		lba, blocks, _ := scsi.ParseTransfer10(cmd.CDB)
		if !d.inRange(lba, blocks) {
			log.Warn("write out of range")
			return scsi.StatusFailed, nil
		}
		if _, err := d.file.WriteAt(cmd.DataOut, int64(lba)*int64(d.blockSize)); err != nil {
			log.WithError(err).Warn("write failed")
			return scsi.StatusFailed, nil
		}
		return scsi.StatusGood, nil
	}

	return scsi.StatusFailed, nil
}

func (d *Device) inRange(lba uint32, blocks uint16) bool {
	return uint64(lba)+uint64(blocks) <= uint64(d.blocks)
}

// SetReady simulates inserting (true) or ejecting (false) the medium.
func (d *Device) SetReady(ready bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = ready
}

// RemovalPrevented reports the state of the last PREVENT ALLOW MEDIUM REMOVAL command.
func (d *Device) RemovalPrevented() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prevented
}

// Blocks returns the number of logical blocks of the image.
func (d *Device) Blocks() uint32 {
	return d.blocks
}

// BlockSize returns the logical block size.
func (d *Device) BlockSize() int {
	return d.blockSize
}

// Close waits for a running command, releases the image lock and closes the image.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.running.Wait()

	unlockErr := d.unlock()
	if err := d.file.Close(); err != nil {
		return checkpoint.From(err)
	}
	return checkpoint.From(unlockErr)
}

package fat32

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/usbfat/fat32/checkpoint"
	"github.com/usbfat/fat32/scsi"
)

// CompletionObserver receives the asynchronous events of a Transport.
// For a command returning data, OnDataReceived is called before OnOperationCompleted.
type CompletionObserver interface {
	OnOperationStarted(ok bool)
	OnDataReceived(data []byte)
	OnOperationCompleted(status int, residue int)
}

// Transport submits SCSI commands to a mass storage device and reports their outcome to
// its observer from another goroutine. Submit returns as soon as the command is queued.
type Transport interface {
	SetObserver(o CompletionObserver)
	Submit(cmd scsi.Command) error
}

type completion struct {
	status  int
	payload []byte
}

// SyncDevice turns an asynchronous Transport into a BlockDevice.
// It never has more than one command in flight.
type SyncDevice struct {
	transport  Transport
	sectorSize int
	log        logrus.FieldLogger

	// inflight is held from submission until the completion was received.
	inflight sync.Mutex

	// mu guards waiting and payload, which the completion goroutine writes.
	mu      sync.Mutex
	waiting bool
	payload []byte

	done chan completion
}

// SyncOption configures a SyncDevice.
type SyncOption func(*SyncDevice)

// WithSectorSize sets the logical block size of the device. Default 512.
func WithSectorSize(size int) SyncOption {
	return func(d *SyncDevice) {
		d.sectorSize = size
	}
}

// WithSyncLogger sets the logger used for command tracing.
func WithSyncLogger(log logrus.FieldLogger) SyncOption {
	return func(d *SyncDevice) {
		d.log = log
	}
}

// NewSyncDevice registers itself as the observer of t and returns the blocking device.
func NewSyncDevice(t Transport, opts ...SyncOption) *SyncDevice {
	d := &SyncDevice{
		transport:  t,
		sectorSize: defaultSectorSize,
		log:        logrus.StandardLogger(),
		done:       make(chan completion, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	t.SetObserver(d)
	return d
}

// perform submits cmd and blocks until its completion arrived. There is no timeout: a device
// which never completes blocks the caller forever.
func (d *SyncDevice) perform(cmd scsi.Command) ([]byte, error) {
	d.inflight.Lock()
	defer d.inflight.Unlock()

	d.mu.Lock()
	d.waiting = true
	d.payload = nil
	d.mu.Unlock()

	d.log.WithField("cmd", cmd).Debug("submit")
	if err := d.transport.Submit(cmd); err != nil {
		d.mu.Lock()
		d.waiting = false
		d.mu.Unlock()
		return nil, checkpoint.Wrap(err, ErrTransport)
	}

	c := <-d.done
	if c.status != scsi.StatusGood {
		return nil, checkpoint.Errorf(ErrTransport, "%v: status %d", cmd, c.status)
	}
	if cmd.DataInLength > 0 && len(c.payload) != cmd.DataInLength {
		return nil, checkpoint.Errorf(ErrTransport, "%v: got %d bytes, want %d", cmd, len(c.payload), cmd.DataInLength)
	}
	return c.payload, nil
}

// OnOperationStarted implements CompletionObserver.
func (d *SyncDevice) OnOperationStarted(ok bool) {
	if !ok {
		d.log.Warn("transport could not start the command")
	}
}

// OnDataReceived implements CompletionObserver.
func (d *SyncDevice) OnDataReceived(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.waiting {
		d.log.WithField("bytes", len(data)).Warn("dropping data without a command in flight")
		return
	}
	d.payload = append(d.payload[:0], data...)
}

// OnOperationCompleted implements CompletionObserver.
func (d *SyncDevice) OnOperationCompleted(status int, residue int) {
	d.mu.Lock()
	if !d.waiting {
		d.mu.Unlock()
		d.log.WithField("status", status).Warn("dropping completion without a command in flight")
		return
	}
	d.waiting = false
	c := completion{status: status, payload: d.payload}
	d.payload = nil
	d.mu.Unlock()

	if residue != 0 {
		d.log.WithField("residue", residue).Debug("short transfer")
	}
	// The channel holds one value and waiting was true, so this never blocks.
	d.done <- c
}

// UnitReady implements BlockDevice.
func (d *SyncDevice) UnitReady() error {
	_, err := d.perform(scsi.TestUnitReady())
	return err
}

// ReadSectors implements BlockDevice.
func (d *SyncDevice) ReadSectors(lba uint32, count uint16) ([]byte, error) {
	if count == 0 {
		return []byte{}, nil
	}
	return d.perform(scsi.Read10(lba, count, d.sectorSize))
}

// WriteSectors implements BlockDevice.
func (d *SyncDevice) WriteSectors(lba uint32, count uint16, data []byte) error {
	if len(data) != int(count)*d.sectorSize {
		return checkpoint.Errorf(ErrTransport, "write of %d bytes is not %d sectors", len(data), count)
	}
	if count == 0 {
		return nil
	}
	_, err := d.perform(scsi.Write10(lba, count, data))
	return err
}

// SetRemovalAllowed implements BlockDevice.
func (d *SyncDevice) SetRemovalAllowed(allowed bool) error {
	_, err := d.perform(scsi.PreventAllowRemoval(!allowed))
	return err
}

// SectorSize implements BlockDevice.
func (d *SyncDevice) SectorSize() int {
	return d.sectorSize
}

package fixture

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by a MemDevice for calls selected by its Fail hooks.
var ErrInjected = errors.New("injected failure")

// MemDevice is a block device working directly on the bytes of a Builder.
type MemDevice struct {
	img        []byte
	sectorSize int

	// FailRead and FailWrite select commands which fail with ErrInjected.
	FailRead  func(lba uint32, count uint16) bool
	FailWrite func(lba uint32, count uint16) bool
	// NotReady makes UnitReady fail.
	NotReady bool

	mu               sync.Mutex
	Reads, Writes    int
	RemovalPrevented bool
}

// Device returns a MemDevice on the image of b. Writes change the image of b.
func (b *Builder) Device() *MemDevice {
	return &MemDevice{img: b.img, sectorSize: int(b.Volume.BytesPerSector)}
}

func (d *MemDevice) UnitReady() error {
	if d.NotReady {
		return ErrInjected
	}
	return nil
}

func (d *MemDevice) ReadSectors(lba uint32, count uint16) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Reads++
	if d.FailRead != nil && d.FailRead(lba, count) {
		return nil, ErrInjected
	}
	start, end := int(lba)*d.sectorSize, (int(lba)+int(count))*d.sectorSize
	if end > len(d.img) {
		return nil, fmt.Errorf("read of %d sectors at %d beyond the image", count, lba)
	}
	return append([]byte(nil), d.img[start:end]...), nil
}

func (d *MemDevice) WriteSectors(lba uint32, count uint16, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Writes++
	if d.FailWrite != nil && d.FailWrite(lba, count) {
		return ErrInjected
	}
	start, end := int(lba)*d.sectorSize, (int(lba)+int(count))*d.sectorSize
	if end > len(d.img) || len(data) != end-start {
		return fmt.Errorf("write of %d sectors at %d does not fit", count, lba)
	}
	copy(d.img[start:end], data)
	return nil
}

func (d *MemDevice) SetRemovalAllowed(allowed bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RemovalPrevented = !allowed
	return nil
}

func (d *MemDevice) SectorSize() int {
	return d.sectorSize
}

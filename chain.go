package fat32

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
	"github.com/usbfat/fat32/checkpoint"
)

const (
	// FAT32 uses 28 bits for cluster addresses, the top 4 bits are reserved.
	mask28 = 0x0FFFFFFF

	// eocMarker is written as end of chain. Every value from eocMin on is read as end of chain.
	eocMarker  = 0x0FFFFFFF
	eocMin     = 0x0FFFFFF8
	badCluster = 0x0FFFFFF7

	// maxTransferSectors bounds a single READ(10)/WRITE(10).
	maxTransferSectors = 0xFFFF
)

// ClusterChain lists the clusters of a file in on-disk link order.
// The end of chain marker is not part of it.
type ClusterChain []uint32

// fatEntry is the value of a FAT32 table entry.
type fatEntry uint32

// Value returns the significant 28 bits.
func (e fatEntry) Value() uint32 { return uint32(e) & mask28 }

func (e fatEntry) IsFree() bool { return e.Value() == 0 }

func (e fatEntry) IsReserved() bool { return e.Value() == 1 }

func (e fatEntry) IsBad() bool { return e.Value() == badCluster }

func (e fatEntry) IsEOF() bool { return e.Value() >= eocMin }

// IsNextCluster reports whether the entry links to another cluster.
func (e fatEntry) IsNextCluster() bool {
	return !e.IsFree() && !e.IsReserved() && !e.IsBad() && !e.IsEOF()
}

// fatSlot is the on-disk location of the FAT entry of a cluster.
type fatSlot struct {
	cluster uint32
	lba     uint32
	index   uint32
}

// clusterEngine maps clusters to sectors and reads, allocates and frees cluster chains.
type clusterEngine struct {
	dev          BlockDevice
	rr           ReservedRegion
	partitionLBA uint32
	log          logrus.FieldLogger
}

func (e *clusterEngine) fatStart() uint32 {
	return e.partitionLBA + uint32(e.rr.ReservedSectors)
}

func (e *clusterEngine) firstDataLBA() uint32 {
	return e.fatStart() + uint32(e.rr.FATCopies)*e.rr.SectorsPerFAT
}

// maxCluster returns the highest cluster number which may be used. It never exceeds the
// last entry of the FAT, whatever the boot sector claims.
func (e *clusterEngine) maxCluster() uint32 {
	last := e.rr.EntriesPerFATSector()*e.rr.SectorsPerFAT - 1
	if n := e.rr.ClusterCount(); n > 0 && n+1 < last {
		return n + 1
	}
	return last
}

// slotOf returns the FAT sector and the entry index inside it for cluster c.
func (e *clusterEngine) slotOf(c uint32) fatSlot {
	per := e.rr.EntriesPerFATSector()
	return fatSlot{
		cluster: c,
		lba:     e.fatStart() + c/per,
		index:   c % per,
	}
}

// clusterLBA returns the first data sector of cluster c.
func (e *clusterEngine) clusterLBA(c uint32) uint32 {
	return e.firstDataLBA() + (c-2)*uint32(e.rr.SectorsPerCluster)
}

func (e *clusterEngine) validCluster(c uint32) bool {
	return c >= 2 && c <= e.maxCluster()
}

// walk follows the chain starting at start until the end of chain marker.
func (e *clusterEngine) walk(start uint32) (ClusterChain, error) {
	if !e.validCluster(start) {
		return nil, checkpoint.Errorf(ErrDecode, "chain starts at invalid cluster %d", start)
	}

	var (
		chain      = ClusterChain{start}
		current    = start
		cachedLBA  uint32
		cached     []byte
		clusterMax = int(e.maxCluster())
	)
	for {
		slot := e.slotOf(current)
		if cached == nil || cachedLBA != slot.lba {
			sector, err := e.dev.ReadSectors(slot.lba, 1)
			if err != nil {
				return nil, checkpoint.Wrap(err, ErrTransport)
			}
			cached, cachedLBA = sector, slot.lba
		}

		entry := fatEntry(binary.LittleEndian.Uint32(cached[slot.index*fatEntrySize:]))
		if entry.IsEOF() {
			return chain, nil
		}
		if !entry.IsNextCluster() || !e.validCluster(entry.Value()) {
			return nil, checkpoint.Errorf(ErrDecode, "cluster %d links to invalid entry 0x%08X", current, uint32(entry))
		}
		if len(chain) >= clusterMax {
			return nil, checkpoint.Errorf(ErrDecode, "chain starting at %d contains a loop", start)
		}

		current = entry.Value()
		chain = append(chain, current)
	}
}

// allocate finds n free clusters in FAT order and links them into a new chain.
// It either links all n clusters or returns ErrAllocationExhausted without having written
// anything.
func (e *clusterEngine) allocate(n int) (ClusterChain, error) {
	if n <= 0 {
		return nil, nil
	}

	per := e.rr.EntriesPerFATSector()
	clusterMax := e.maxCluster()
	slots := make([]fatSlot, 0, n)

scan:
	for s := uint32(0); s < e.rr.SectorsPerFAT; s++ {
		lba := e.fatStart() + s
		sector, err := e.dev.ReadSectors(lba, 1)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrTransport)
		}
		for i := uint32(0); i < per; i++ {
			c := s*per + i
			if c < 2 {
				continue
			}
			if c > clusterMax {
				break scan
			}
			if fatEntry(binary.LittleEndian.Uint32(sector[i*fatEntrySize:])).IsFree() {
				slots = append(slots, fatSlot{cluster: c, lba: lba, index: i})
				if len(slots) == n {
					break scan
				}
			}
		}
	}
	if len(slots) < n {
		return nil, checkpoint.Errorf(ErrAllocationExhausted, "need %d clusters, only %d free", n, len(slots))
	}

	chain := make(ClusterChain, n)
	for j, slot := range slots {
		chain[j] = slot.cluster
	}
	for j, slot := range slots {
		next := uint32(eocMarker)
		if j < n-1 {
			next = slots[j+1].cluster
		}
		if err := e.setEntry(slot, next); err != nil {
			// Undo the links written so far so no half chain stays allocated.
			e.releaseSlots(slots[:j])
			return nil, err
		}
	}

	e.log.WithFields(logrus.Fields{"first": chain[0], "clusters": n}).Debug("allocated chain")
	return chain, nil
}

// setEntry rewrites a single FAT entry, keeping its reserved top bits, and mirrors the sector
// to all other FAT copies.
func (e *clusterEngine) setEntry(slot fatSlot, value uint32) error {
	sector, err := e.dev.ReadSectors(slot.lba, 1)
	if err != nil {
		return checkpoint.Wrap(err, ErrTransport)
	}
	off := slot.index * fatEntrySize
	old := binary.LittleEndian.Uint32(sector[off:])
	binary.LittleEndian.PutUint32(sector[off:], old&^mask28|value&mask28)

	if err := e.dev.WriteSectors(slot.lba, 1, sector); err != nil {
		return checkpoint.Wrap(err, ErrTransport)
	}
	for k := uint32(1); k < uint32(e.rr.FATCopies); k++ {
		mirror := slot.lba + k*e.rr.SectorsPerFAT
		if err := e.dev.WriteSectors(mirror, 1, sector); err != nil {
			// The first FAT stays authoritative.
			e.log.WithError(err).WithField("lba", mirror).Warn("could not update FAT copy")
		}
	}
	return nil
}

// release marks all clusters of chain as free again.
func (e *clusterEngine) release(chain ClusterChain) error {
	slots := make([]fatSlot, len(chain))
	for i, c := range chain {
		slots[i] = e.slotOf(c)
	}
	return e.releaseSlots(slots)
}

func (e *clusterEngine) releaseSlots(slots []fatSlot) error {
	var first error
	for _, slot := range slots {
		if err := e.setEntry(slot, 0); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		e.log.WithError(first).Warn("could not free all clusters")
	}
	return first
}

// runs splits a chain into runs of consecutive clusters which fit into a single transfer.
func (e *clusterEngine) runs(chain ClusterChain) [][2]uint32 {
	spc := uint32(e.rr.SectorsPerCluster)
	var result [][2]uint32
	for i := 0; i < len(chain); {
		start, length := chain[i], uint32(1)
		for i+int(length) < len(chain) &&
			chain[i+int(length)] == start+length &&
			(length+1)*spc <= maxTransferSectors {
			length++
		}
		result = append(result, [2]uint32{start, length})
		i += int(length)
	}
	return result
}

// readChain returns the content of all clusters of chain.
func (e *clusterEngine) readChain(chain ClusterChain) ([]byte, error) {
	spc := uint32(e.rr.SectorsPerCluster)
	data := make([]byte, 0, len(chain)*e.rr.ClusterSize())
	for _, run := range e.runs(chain) {
		sectors, err := e.dev.ReadSectors(e.clusterLBA(run[0]), uint16(run[1]*spc))
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrTransport)
		}
		data = append(data, sectors...)
	}
	return data, nil
}

// writeChain writes data over the clusters of chain. The tail of the last cluster is
// filled with zeros.
func (e *clusterEngine) writeChain(chain ClusterChain, data []byte) error {
	clusterSize := e.rr.ClusterSize()
	if len(data) > len(chain)*clusterSize {
		return checkpoint.Errorf(ErrAllocationExhausted, "%d bytes do not fit into %d clusters", len(data), len(chain))
	}
	buf := make([]byte, len(chain)*clusterSize)
	copy(buf, data)

	spc := uint32(e.rr.SectorsPerCluster)
	for _, run := range e.runs(chain) {
		size := int(run[1]) * clusterSize
		if err := e.dev.WriteSectors(e.clusterLBA(run[0]), uint16(run[1]*spc), buf[:size]); err != nil {
			return checkpoint.Wrap(err, ErrTransport)
		}
		buf = buf[size:]
	}
	return nil
}

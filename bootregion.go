package fat32

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/usbfat/fat32/checkpoint"
)

// Partition is one entry of the MBR partition table.
type Partition struct {
	LBAStart    uint32
	SectorCount uint32
	Type        uint8
}

// Used reports whether the table slot describes a partition at all.
func (p Partition) Used() bool {
	return p.Type != 0
}

// IsFAT32 reports whether the partition type is one of the FAT32 type codes.
func (p Partition) IsFAT32() bool {
	return p.Type == 0x0B || p.Type == 0x0C
}

// MasterBootRecord is the parsed partition table of sector 0.
// Unused slots are kept so partition indexes stay stable.
type MasterBootRecord struct {
	Partitions [4]Partition
	Signature  uint16
}

// Valid reports whether the boot signature 0xAA55 is present.
func (m MasterBootRecord) Valid() bool {
	return m.Signature == bootSignature
}

// ReservedRegion holds the fields of the FAT32 boot sector all address arithmetic relies on.
type ReservedRegion struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	FATCopies         uint8
	SectorsPerFAT     uint32

	TotalSectors uint32
	RootCluster  uint32
	VolumeLabel  string
}

// ClusterSize returns the size of a cluster in bytes.
func (r ReservedRegion) ClusterSize() int {
	return int(r.SectorsPerCluster) * int(r.BytesPerSector)
}

// EntriesPerFATSector returns how many FAT entries fit into one sector.
func (r ReservedRegion) EntriesPerFATSector() uint32 {
	return uint32(r.BytesPerSector) / fatEntrySize
}

// ClusterCount returns the number of data clusters of the volume,
// or 0 if the total sector count is unknown.
func (r ReservedRegion) ClusterCount() uint32 {
	meta := uint32(r.ReservedSectors) + uint32(r.FATCopies)*r.SectorsPerFAT
	if r.TotalSectors <= meta || r.SectorsPerCluster == 0 {
		return 0
	}
	return (r.TotalSectors - meta) / uint32(r.SectorsPerCluster)
}

// ParseMBR reads the partition table of sector 0.
func ParseMBR(sector []byte) (MasterBootRecord, error) {
	var mbr MasterBootRecord
	if len(sector) < defaultSectorSize {
		return mbr, checkpoint.Errorf(ErrDecode, "boot sector has only %d bytes", len(sector))
	}

	var table [4]partitionEntry
	err := binary.Read(bytes.NewReader(sector[mbrPartitionTableOffset:mbrSignatureOffset]), binary.LittleEndian, &table)
	if err != nil {
		return mbr, checkpoint.Wrap(err, ErrDecode)
	}
	for i, pte := range table {
		mbr.Partitions[i] = Partition{
			LBAStart:    pte.LBAStart,
			SectorCount: pte.SectorCount,
			Type:        pte.Type,
		}
	}
	mbr.Signature = binary.LittleEndian.Uint16(sector[mbrSignatureOffset:])
	return mbr, nil
}

// isFAT32BootSector reports whether sector is a FAT32 volume boot record, which is the case
// for media formatted without a partition table.
func isFAT32BootSector(sector []byte) bool {
	if len(sector) < defaultSectorSize {
		return false
	}
	if binary.LittleEndian.Uint16(sector[mbrSignatureOffset:]) != bootSignature {
		return false
	}
	if j := sector[0]; j != 0xEB && j != 0xE9 {
		return false
	}
	return string(sector[82:90]) == "FAT32   "
}

// ParseReservedRegion reads the BIOS parameter block of a FAT32 boot sector.
func ParseReservedRegion(sector []byte) (ReservedRegion, error) {
	var bs bootSector
	if len(sector) < defaultSectorSize {
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "boot sector has only %d bytes", len(sector))
	}
	if err := binary.Read(bytes.NewReader(sector), binary.LittleEndian, &bs); err != nil {
		return ReservedRegion{}, checkpoint.Wrap(err, ErrDecode)
	}

	// Only 512, 1024, 2048 and 4096 are allowed by FAT.
	switch bs.BytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "invalid sector size %d", bs.BytesPerSector)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	if bs.SectorsPerCluster == 0 || bs.SectorsPerCluster&(bs.SectorsPerCluster-1) != 0 {
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "invalid sectors per cluster %d", bs.SectorsPerCluster)
	}

	if bs.ReservedSectorCount == 0 {
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "invalid reserved sector count")
	}
	if bs.NumFATs == 0 {
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "no FAT present")
	}

	// FAT32 always uses the 32 bit FAT size, the legacy 16 bit one is 0.
	if bs.FATSize32 == 0 {
		return ReservedRegion{}, checkpoint.Errorf(ErrDecode, "not a FAT32 volume: 32 bit FAT size is 0")
	}

	rr := ReservedRegion{
		BytesPerSector:    bs.BytesPerSector,
		SectorsPerCluster: bs.SectorsPerCluster,
		ReservedSectors:   bs.ReservedSectorCount,
		FATCopies:         bs.NumFATs,
		SectorsPerFAT:     bs.FATSize32,
		TotalSectors:      bs.TotalSectors32,
		RootCluster:       bs.RootCluster,
		VolumeLabel:       strings.TrimRight(string(bs.VolumeLabel[:]), " \x00"),
	}
	if rr.TotalSectors == 0 {
		rr.TotalSectors = uint32(bs.TotalSectors16)
	}
	if rr.RootCluster < 2 {
		rr.RootCluster = rootClusterFallback
	}
	return rr, nil
}

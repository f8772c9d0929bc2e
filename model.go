// File model contains the structs which match the direct structures of the FAT32 filesystem.

package fat32

const (
	defaultSectorSize = 512

	entrySize    = 32 // size of one directory record
	fatEntrySize = 4  // size of one FAT32 table entry

	mbrPartitionTableOffset = 446
	mbrSignatureOffset      = 510
	bootSignature           = 0xAA55

	// rootClusterFallback is the well-known first cluster of the root directory.
	rootClusterFallback = 2
)

// Directory entry attributes.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

// Special values of the first name byte of a directory record.
const (
	entryFree    = 0x00 // this and all following records are unused
	entryDeleted = 0xE5
	entryKanji   = 0x05 // stands for a leading 0xE5 character
)

// Flags in EntryHeader.NTReserved telling that the short name parts are lower case.
const (
	ntLowerBase = 0x08
	ntLowerExt  = 0x10
)

// lfnLast marks the long filename record holding the end of the name.
const lfnLast = 0x40

// lfnCharsPerEntry is the number of UTF-16 code units in one long filename record.
const lfnCharsPerEntry = 13

// partitionEntry is one of the four records of the MBR partition table.
type partitionEntry struct {
	Status      byte
	CHSFirst    [3]byte
	Type        byte
	CHSLast     [3]byte
	LBAStart    uint32
	SectorCount uint32
}

// bootSector is the leading part of a FAT32 volume boot record.
type bootSector struct {
	JumpBoot            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSize32           uint32
	ExtFlags            uint16
	FSVersion           uint16
	RootCluster         uint32
	FSInfo              uint16
	BkBootSector        uint16
	Reserved            [12]byte
	DriveNumber         byte
	Reserved1           byte
	BootSignature       byte
	VolumeID            uint32
	VolumeLabel         [11]byte
	FileSystemType      [8]byte
}

// EntryHeader is a normal 32 byte directory record.
type EntryHeader struct {
	Name            [11]byte
	Attribute       byte
	NTReserved      byte
	CreateTimeTenth byte
	CreateTime      uint16
	CreateDate      uint16
	LastAccessDate  uint16
	FirstClusterHI  uint16
	WriteTime       uint16
	WriteDate       uint16
	FirstClusterLO  uint16
	FileSize        uint32
}

// LongFilenameEntry is a 32 byte long filename continuation record.
type LongFilenameEntry struct {
	Sequence  byte
	First     [5]uint16
	Attribute byte
	EntryType byte
	Checksum  byte
	Second    [6]uint16
	Zero      [2]byte
	Third     [2]uint16
}

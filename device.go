package fat32

// BlockDevice is the sector level capability the Driver runs on. Every call is synchronous
// for the caller and at most one call is in progress at a time.
//
// Generated mock using mockgen:
//  mockgen -source=device.go -destination=device_mock.go -package fat32
type BlockDevice interface {
	// UnitReady checks whether the medium is present and ready.
	UnitReady() error

	// ReadSectors reads count sectors starting at lba.
	// The result is exactly count*SectorSize() bytes long.
	ReadSectors(lba uint32, count uint16) ([]byte, error)

	// WriteSectors writes count sectors starting at lba. len(data) must be count*SectorSize().
	WriteSectors(lba uint32, count uint16, data []byte) error

	// SetRemovalAllowed locks (false) or unlocks (true) the medium in the drive.
	SetRemovalAllowed(allowed bool) error

	// SectorSize returns the size of one logical block in bytes.
	SectorSize() int
}

// Package scsi builds and decodes the command descriptor blocks (CDBs) the FAT32 engine
// sends to a mass storage device. Only the four commands the engine needs are supported.
package scsi

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Operation codes.
const (
	OpTestUnitReady       = 0x00
	OpPreventAllowRemoval = 0x1E
	OpRead10              = 0x28
	OpWrite10             = 0x2A
)

// Command status values as reported in a command status wrapper.
const (
	StatusGood       = 0x00
	StatusFailed     = 0x01
	StatusPhaseError = 0x02
)

const (
	cdb6Len  = 6
	cdb10Len = 10
)

var (
	ErrShortCDB     = errors.New("scsi: command descriptor block too short")
	ErrUnknownOp    = errors.New("scsi: unsupported operation code")
	ErrDataMismatch = errors.New("scsi: data length does not match transfer length")
)

// Command is a single CDB together with its data phase.
type Command struct {
	CDB []byte

	// DataOut is sent to the device (WRITE(10) only).
	DataOut []byte

	// DataInLength is the number of bytes the device is expected to return.
	DataInLength int
}

// OpCode returns the operation code of the command.
func (c Command) OpCode() byte {
	if len(c.CDB) == 0 {
		return 0xFF
	}
	return c.CDB[0]
}

func (c Command) String() string {
	switch c.OpCode() {
	case OpTestUnitReady:
		return "TEST UNIT READY"
	case OpPreventAllowRemoval:
		if prevent, err := ParsePreventAllowRemoval(c.CDB); err == nil && prevent {
			return "PREVENT MEDIUM REMOVAL"
		}
		return "ALLOW MEDIUM REMOVAL"
	case OpRead10, OpWrite10:
		name := "READ(10)"
		if c.OpCode() == OpWrite10 {
			name = "WRITE(10)"
		}
		lba, blocks, err := ParseTransfer10(c.CDB)
		if err != nil {
			return name
		}
		return fmt.Sprintf("%s lba=%d blocks=%d", name, lba, blocks)
	default:
		return fmt.Sprintf("OP 0x%02X", c.OpCode())
	}
}

// TestUnitReady builds a TEST UNIT READY command.
func TestUnitReady() Command {
	return Command{CDB: make([]byte, cdb6Len)}
}

// PreventAllowRemoval builds a PREVENT ALLOW MEDIUM REMOVAL command.
// With prevent set the medium is locked in the drive.
func PreventAllowRemoval(prevent bool) Command {
	cdb := make([]byte, cdb6Len)
	cdb[0] = OpPreventAllowRemoval
	if prevent {
		cdb[4] = 0x01
	}
	return Command{CDB: cdb}
}

// Read10 builds a READ(10) command for blocks sectors starting at lba.
func Read10(lba uint32, blocks uint16, blockSize int) Command {
	return Command{
		CDB:          transfer10(OpRead10, lba, blocks),
		DataInLength: int(blocks) * blockSize,
	}
}

// Write10 builds a WRITE(10) command. data must hold exactly blocks sectors.
func Write10(lba uint32, blocks uint16, data []byte) Command {
	return Command{
		CDB:     transfer10(OpWrite10, lba, blocks),
		DataOut: data,
	}
}

func transfer10(op byte, lba uint32, blocks uint16) []byte {
	cdb := make([]byte, cdb10Len)
	cdb[0] = op
	binary.BigEndian.PutUint32(cdb[2:6], lba)
	binary.BigEndian.PutUint16(cdb[7:9], blocks)
	return cdb
}

// ParseTransfer10 returns the LBA and transfer length of a READ(10) or WRITE(10) CDB.
func ParseTransfer10(cdb []byte) (lba uint32, blocks uint16, err error) {
	if len(cdb) < cdb10Len {
		return 0, 0, ErrShortCDB
	}
	if cdb[0] != OpRead10 && cdb[0] != OpWrite10 {
		return 0, 0, ErrUnknownOp
	}
	return binary.BigEndian.Uint32(cdb[2:6]), binary.BigEndian.Uint16(cdb[7:9]), nil
}

// ParsePreventAllowRemoval returns whether the CDB asks to prevent medium removal.
func ParsePreventAllowRemoval(cdb []byte) (prevent bool, err error) {
	if len(cdb) < cdb6Len {
		return false, ErrShortCDB
	}
	if cdb[0] != OpPreventAllowRemoval {
		return false, ErrUnknownOp
	}
	return cdb[4]&0x03 != 0, nil
}

// Validate checks that a command is one of the supported ones and that its data phase
// matches the transfer length for the given block size.
func (c Command) Validate(blockSize int) error {
	switch c.OpCode() {
	case OpTestUnitReady, OpPreventAllowRemoval:
		if len(c.CDB) < cdb6Len {
			return ErrShortCDB
		}
		return nil
	case OpRead10:
		_, blocks, err := ParseTransfer10(c.CDB)
		if err != nil {
			return err
		}
		if c.DataInLength != int(blocks)*blockSize {
			return ErrDataMismatch
		}
		return nil
	case OpWrite10:
		_, blocks, err := ParseTransfer10(c.CDB)
		if err != nil {
			return err
		}
		if len(c.DataOut) != int(blocks)*blockSize {
			return ErrDataMismatch
		}
		return nil
	default:
		return ErrUnknownOp
	}
}
